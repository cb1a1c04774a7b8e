package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/verificationtokens"
)

// RepositoryManager vends repositories bound to either a *sql.DB or a
// *sql.Tx, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	VerificationTokens(db dbx.DBTX) verificationtokens.Repository
	Attachments(db dbx.DBTX) attachments.Repository
}
