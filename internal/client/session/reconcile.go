package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/ctfclient/internal/client/api"
	"github.com/iudanet/ctfclient/internal/client/storage"
	"github.com/iudanet/ctfclient/internal/models"
)

// Reconcile refetches user, team and catalog and replaces the cached view.
//
// Steps run in order. An explicit server rejection of any step logs the
// session out and returns ErrSessionRevoked; a 404 for the team means "no
// team". Transport failures mark the store not ready, keep the cached data
// and yield a *DegradedError. Only when all three fetches succeed is the
// memory view replaced and persisted in one mirror transaction.
//
// Only the newest call may write: a call overtaken by another Reconcile,
// Logout or Close returns ErrSuperseded without touching any state.
func (s *Store) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.token == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	var degraded []error

	// 1. Текущий пользователь
	user, err := s.remote.GetUser(ctx, api.SelfID)
	if err != nil {
		if api.IsRejection(err) {
			return s.revoke(ctx, gen, fmt.Errorf("fetch user: %w", err))
		}
		degraded = append(degraded, fmt.Errorf("fetch user: %w", err))
		s.markDegraded(gen)
	}

	// 2. Команда, 404 означает что команды нет
	team, err := s.remote.GetTeam(ctx, api.SelfID)
	if err != nil {
		switch {
		case api.IsNotFound(err):
			team = nil
		case api.IsRejection(err):
			return s.revoke(ctx, gen, fmt.Errorf("fetch team: %w", err))
		default:
			degraded = append(degraded, fmt.Errorf("fetch team: %w", err))
			s.markDegraded(gen)
		}
	}

	// 3. Каталог заданий
	challenges, err := s.remote.GetChallenges(ctx)
	if err != nil {
		if api.IsRejection(err) {
			return s.revoke(ctx, gen, fmt.Errorf("fetch challenges: %w", err))
		}
		degraded = append(degraded, fmt.Errorf("fetch challenges: %w", err))
	}

	if len(degraded) > 0 {
		return s.degrade(ctx, gen, degraded)
	}

	// 4. Атомарная замена и сохранение
	return s.commit(ctx, gen, &storage.Snapshot{User: user, Team: team, Challenges: challenges})
}

// currentLocked reports whether generation gen may still write state
func (s *Store) currentLocked(ctx context.Context, gen uint64) error {
	if s.closed || gen != s.generation {
		return ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSuperseded, err)
	}
	return nil
}

func (s *Store) markDegraded(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && gen == s.generation {
		s.ready = false
	}
}

func (s *Store) degrade(ctx context.Context, gen uint64, errs []error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(ctx, gen); err != nil {
		return err
	}

	s.ready = false
	s.state = StateReady
	dErr := &DegradedError{Errs: errs}
	s.logger.WarnContext(ctx, "reconciliation degraded, keeping cached data", "error", dErr)
	return dErr
}

func (s *Store) revoke(ctx context.Context, gen uint64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(ctx, gen); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "session rejected by server, logging out", "error", cause)
	s.logoutLocked(ctx)
	return fmt.Errorf("%w: %w", ErrSessionRevoked, cause)
}

func (s *Store) commit(ctx context.Context, gen uint64, snap *storage.Snapshot) error {
	if snap.Challenges == nil {
		snap.Challenges = models.Catalog{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(ctx, gen); err != nil {
		return err
	}

	if err := s.persist(ctx, snap); err != nil {
		// Зеркало не обновлено, память тоже не трогаем
		s.ready = false
		s.state = StateReady
		return err
	}

	s.user = snap.User
	s.team = snap.Team
	s.challenges = snap.Challenges
	s.patches = patchSet{}
	s.ready = true
	s.authenticated = true
	s.state = StateReady

	s.logger.DebugContext(ctx, "session reconciled",
		"has_team", snap.Team != nil,
		"categories", len(snap.Challenges),
	)
	return nil
}

func (s *Store) persist(ctx context.Context, snap *storage.Snapshot) (err error) {
	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire session lock: %w", err)
		}
		defer func() {
			if unlockErr := s.lock.Unlock(); unlockErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to release session lock: %w", unlockErr))
			}
		}()
	}

	if err := s.mirror.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}
