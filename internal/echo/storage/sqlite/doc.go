// Package sqlite persists detection runs and their single targets.
//
// Detection layers (L1-L6) never touch SQL; the CLI hands a finished
// l6targets.Set to TargetStore after the pipeline returns.
package sqlite
