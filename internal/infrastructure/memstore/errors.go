package memstore

import "github.com/lendledger/lendledger/internal/domain/errs"

var errActiveAgreement = errs.InvalidState("memstore.agreements", "item already has an active agreement")
