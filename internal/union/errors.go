package union

import "errors"

var (
	// ErrPathNotFound indicates a required input directory is absent.
	// Inputs are validated before any staging or reconciliation begins.
	ErrPathNotFound = errors.New("path not found")

	// ErrStaging indicates the bulk copy of a change-set into its
	// isolated staging directory failed.
	ErrStaging = errors.New("staging failed")
)
