// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/model"
)

const refreshCookieName = "refresh_token"

// setRefreshCookie installs the rotated refresh token. HttpOnly and
// SameSite=Strict keep it out of scripts and cross-site requests.
func setRefreshCookie(c echo.Context, token auth.Token) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token.RefreshToken,
		Expires:  token.RefreshExpire,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// handleLogin implements the OAuth2 password grant. The optional scope
// field is a space-separated list; empty grants the role's full set.
func (s *Server) handleLogin(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	var requested []model.Scope
	if raw := strings.TrimSpace(c.FormValue("scope")); raw != "" {
		for _, sc := range strings.Fields(raw) {
			requested = append(requested, model.Scope(sc))
		}
	}

	token, err := s.auth.Login(c.Request().Context(), username, password, requested)
	if err != nil {
		return err
	}
	setRefreshCookie(c, token)
	return c.JSON(http.StatusOK, token)
}

// handleTokenUpdate rotates an expired access token using the refresh
// cookie. A still-valid access token comes back unchanged.
func (s *Server) handleTokenUpdate(c echo.Context) error {
	accessToken, err := bearerToken(c)
	if err != nil {
		return err
	}

	var refreshToken string
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	token, err := s.auth.Refresh(c.Request().Context(), accessToken, refreshToken)
	if err != nil {
		return err
	}
	setRefreshCookie(c, token)
	return c.JSON(http.StatusOK, token)
}

// handleTokenValidate reports whether the bearer token is usable.
func (s *Server) handleTokenValidate(c echo.Context) error {
	valid := false
	if token, err := bearerToken(c); err == nil {
		valid = s.auth.Validate(token)
	}
	return c.JSON(http.StatusOK, map[string]bool{"is_valid": valid})
}

// handleLogout deletes the login record and clears the refresh cookie.
func (s *Server) handleLogout(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}
	if err := s.auth.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	clearRefreshCookie(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}
