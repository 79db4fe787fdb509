package swerve

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig indicates a module description that cannot be driven.
	ErrInvalidConfig = errors.New("swerve: invalid module configuration")

	// ErrNoModules indicates a chassis without modules.
	ErrNoModules = errors.New("swerve: chassis has no modules")
)
