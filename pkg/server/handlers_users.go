// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/ingest"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

// defaultActiveDays bounds a new account's login window when the
// request leaves it out.
const defaultActiveDays = 365

const activeDateLayout = "2006-01-02"

// registerRequest is the single-user registration payload.
type registerRequest struct {
	UserID          string     `json:"user_id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	PlainPassword   string     `json:"plain_password"`
	Role            model.Role `json:"role"`
	ActiveStartDate *time.Time `json:"active_start_date"`
	ActiveEndDate   *time.Time `json:"active_end_date"`
}

// buildUser validates a registration request and produces the row to
// insert. Admin accounts cannot be created over the API.
func buildUser(req registerRequest, now time.Time) (model.User, error) {
	if req.UserID == "" || req.Username == "" {
		return model.User{}, fmt.Errorf("%w: user_id and username are required", ingest.ErrBadRequest)
	}
	if !req.Role.Valid() {
		return model.User{}, fmt.Errorf("%w: unknown role %q", ingest.ErrBadRequest, req.Role)
	}
	if req.Role == model.RoleAdmin {
		return model.User{}, fmt.Errorf("%w: admin accounts cannot be created over the API", auth.ErrForbidden)
	}

	password := req.PlainPassword
	if password == "" {
		generated, err := generatePassword()
		if err != nil {
			return model.User{}, err
		}
		password = generated
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	start := now
	if req.ActiveStartDate != nil {
		start = *req.ActiveStartDate
	}
	end := start.AddDate(0, 0, defaultActiveDays)
	if req.ActiveEndDate != nil {
		end = *req.ActiveEndDate
	}
	if !end.After(start) {
		return model.User{}, fmt.Errorf("%w: active_end_date must be after active_start_date", ingest.ErrBadRequest)
	}

	return model.User{
		UserID:          req.UserID,
		Username:        req.Username,
		Email:           req.Email,
		HashedPassword:  hash,
		Role:            req.Role,
		ActiveStartDate: start,
		ActiveEndDate:   end,
	}, nil
}

// passwordAlphabet excludes look-alike characters.
const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// generatePassword draws a random initial password for accounts
// registered without one.
func generatePassword() (string, error) {
	const length = 12
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// handleUserRegister creates one account.
func (s *Server) handleUserRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", ingest.ErrBadRequest)
	}

	user, err := buildUser(req, time.Now())
	if err != nil {
		return err
	}
	created, err := s.store.CreateUser(c.Request().Context(), user)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: user %s already exists", ingest.ErrBadRequest, user.UserID)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

// bulkRegisterColumns are the required spreadsheet/CSV headers for the
// multi-user import, in any column order.
var bulkRegisterColumns = []string{
	"user_id", "username", "email", "password", "role",
	"active_start_date", "active_end_date",
}

// bulkRegisterResponse reports the import outcome. Rows that fail keep
// their error while the rest of the file still registers.
type bulkRegisterResponse struct {
	Registered    int      `json:"registered"`
	ErrorMessages []string `json:"error_messages"`
}

// handleUserRegisterMultiple imports accounts from an uploaded .csv or
// .xlsx file.
func (s *Server) handleUserRegisterMultiple(c echo.Context) error {
	fh, err := c.FormFile("upload_file")
	if err != nil {
		return fmt.Errorf("%w: upload_file is required", ingest.ErrBadRequest)
	}
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("%w: cannot read uploaded file %s", ingest.ErrBadRequest, fh.Filename)
	}
	defer src.Close()

	var rows [][]string
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".csv":
		rows, err = readCSVRows(src)
	case ".xlsx":
		rows, err = readSheetRows(src)
	default:
		return fmt.Errorf("%w: upload_file must be .csv or .xlsx", ingest.ErrBadRequest)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrBadRequest, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s is empty", ingest.ErrBadRequest, fh.Filename)
	}

	columns := map[string]int{}
	for i, name := range rows[0] {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range bulkRegisterColumns {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("%w: column %q is missing", ingest.ErrBadRequest, required)
		}
	}

	cell := func(row []string, name string) string {
		i := columns[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	now := time.Now()
	resp := bulkRegisterResponse{ErrorMessages: []string{}}
	for n, row := range rows[1:] {
		req := registerRequest{
			UserID:        cell(row, "user_id"),
			Username:      cell(row, "username"),
			Email:         cell(row, "email"),
			PlainPassword: cell(row, "password"),
			Role:          model.Role(cell(row, "role")),
		}
		if raw := cell(row, "active_start_date"); raw != "" {
			t, err := time.ParseInLocation(activeDateLayout, raw, time.Local)
			if err != nil {
				resp.ErrorMessages = append(resp.ErrorMessages,
					fmt.Sprintf("row %d: invalid active_start_date %q", n+2, raw))
				continue
			}
			req.ActiveStartDate = &t
		}
		if raw := cell(row, "active_end_date"); raw != "" {
			t, err := time.ParseInLocation(activeDateLayout, raw, time.Local)
			if err != nil {
				resp.ErrorMessages = append(resp.ErrorMessages,
					fmt.Sprintf("row %d: invalid active_end_date %q", n+2, raw))
				continue
			}
			req.ActiveEndDate = &t
		}

		user, err := buildUser(req, now)
		if err != nil {
			resp.ErrorMessages = append(resp.ErrorMessages,
				fmt.Sprintf("row %d: %v", n+2, err))
			continue
		}
		if _, err := s.store.CreateUser(c.Request().Context(), user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				resp.ErrorMessages = append(resp.ErrorMessages,
					fmt.Sprintf("row %d: user %s already exists", n+2, user.UserID))
				continue
			}
			return err
		}
		resp.Registered++
	}
	return c.JSON(http.StatusOK, resp)
}

func readCSVRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

func readSheetRows(r io.Reader) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return wb.GetRows(sheets[0])
}

// handleUserList returns every account. Password hashes never
// serialize.
func (s *Server) handleUserList(c echo.Context) error {
	users, err := s.store.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	if users == nil {
		users = []model.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// deleteRequest names the accounts to remove.
type deleteRequest struct {
	UserIDs []string `json:"user_ids"`
}

// handleUserDelete removes the named accounts in one transaction.
func (s *Server) handleUserDelete(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", ingest.ErrBadRequest)
	}
	if len(req.UserIDs) == 0 {
		return fmt.Errorf("%w: user_ids is empty", ingest.ErrBadRequest)
	}

	deleted, err := s.store.DeleteUsers(c.Request().Context(), req.UserIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}
