package session

import "github.com/iudanet/ctfclient/internal/models"

// patchSet holds optimistic local changes not yet confirmed by the server.
// They are merged into Snapshot and dropped by the next successful reconciliation.
type patchSet struct {
	username *string
	solved   map[int64]bool
}

func (p *patchSet) empty() bool {
	return p.username == nil && len(p.solved) == 0
}

func (p *patchSet) setUsername(name string) {
	p.username = &name
}

func (p *patchSet) markSolved(id int64) {
	if p.solved == nil {
		p.solved = make(map[int64]bool)
	}
	p.solved[id] = true
}

// applyUser returns a copy of user with the pending username merged in
func (p *patchSet) applyUser(user *models.User) *models.User {
	if user == nil {
		return nil
	}
	out := *user
	if p.username != nil {
		out.Username = *p.username
	}
	return &out
}

// applyCatalog returns a copy of the catalog with pending solves applied
func (p *patchSet) applyCatalog(catalog models.Catalog) models.Catalog {
	out := catalog.Clone()
	if out == nil {
		return models.Catalog{}
	}
	for id := range p.solved {
		if chal, _ := out.FindChallenge(id); chal != nil {
			chal.Solved = true
		}
	}
	return out
}
