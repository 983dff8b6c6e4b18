package models

import "errors"

var ErrLedgerImmutable = errors.New("credit entries are append-only")
