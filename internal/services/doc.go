// Package services provides the shared error taxonomy used across setlist
// components.
//
// Errors are tagged with sentinel markers (ErrAccess, ErrParse, ErrValidation,
// ErrConfiguration, ErrNotFound, ErrBusy, ErrTransient) via Wrap so callers can
// classify failures with errors.Is without string matching. Per-file access and
// parse failures are absorbed into scan warnings; only root-level access and
// configuration failures abort a run.
package services
