// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/model"
	"github.com/classware-labs/gavel/pkg/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the user directory",
}

var (
	adminUserID   string
	adminUsername string
	adminEmail    string
	adminDays     int
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: heredoc.Doc(`
		Create an admin account directly in the database. The API
		refuses to register admins, so this command is the only way to
		bootstrap one. The password is prompted, never echoed.
	`),
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUserID, "user-id", "", "account id")
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "contact email")
	createAdminCmd.Flags().IntVar(&adminDays, "active-days", 365, "length of the login window")
	_ = createAdminCmd.MarkFlagRequired("user-id")
	_ = createAdminCmd.MarkFlagRequired("username")

	usersCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(usersCmd)
}

// promptPassword reads a password twice without echo and requires the
// entries to match.
func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password prompt needs a terminal")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(first), nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	password, err := promptPassword(cmd)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := store.Open(ctx, store.Config{
		Driver: config.Database.Driver,
		DSN:    config.Database.DSN,
	}, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	user, err := st.CreateUser(ctx, model.User{
		UserID:          adminUserID,
		Username:        adminUsername,
		Email:           adminEmail,
		HashedPassword:  hash,
		Role:            model.RoleAdmin,
		ActiveStartDate: now,
		ActiveEndDate:   now.AddDate(0, 0, adminDays),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s\n", user.UserID)
	return nil
}
