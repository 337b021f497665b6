// Copyright © 2026 Classware Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package server

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/classware-labs/gavel/pkg/auth"
	"github.com/classware-labs/gavel/pkg/model"
)

const currentUserKey = "gavel.current_user"

// bearerToken pulls the access token out of the Authorization header.
func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("%w: missing bearer token", auth.ErrUnauthenticated)
	}
	return strings.TrimPrefix(header, prefix), nil
}

// requireScopes authenticates the bearer token and enforces the
// operation's required scope set, stashing the resolved user on the
// request context.
func (s *Server) requireScopes(required ...model.Scope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}
			user, _, err := s.auth.CurrentUser(c.Request().Context(), token, required...)
			if err != nil {
				return err
			}
			c.Set(currentUserKey, user)
			return next(c)
		}
	}
}

// currentUser returns the user the scope middleware resolved.
func currentUser(c echo.Context) model.User {
	user, _ := c.Get(currentUserKey).(model.User)
	return user
}
