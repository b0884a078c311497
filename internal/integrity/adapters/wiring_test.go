package adapters

import (
	"notary/internal/contracts/store"
	"notary/internal/documents"
	"notary/internal/integrity"
)

// The contract stores and document fetchers satisfy the engine ports directly.
var (
	_ integrity.ContractStore   = (*store.InMemory)(nil)
	_ integrity.ContractStore   = (*store.Postgres)(nil)
	_ integrity.DocumentFetcher = (*documents.S3Fetcher)(nil)
	_ integrity.DocumentFetcher = (*documents.InMemory)(nil)
)
