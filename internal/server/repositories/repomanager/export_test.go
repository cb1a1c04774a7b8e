package repomanager

import "github.com/dmitrijs2005/usersvc/internal/server/models"

// TokensFor returns the outstanding tokens of an account.
func (m *InMemoryRepositoryManager) TokensFor(accountID string) []models.VerificationToken {
	m.tokens.mu.Lock()
	defer m.tokens.mu.Unlock()
	var out []models.VerificationToken
	for _, t := range m.tokens.rows {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}
