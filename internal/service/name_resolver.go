package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/repository"
)

// DefaultCandidateName is used when nothing better is known.
const DefaultCandidateName = "Candidate"

// NameLookup is one strategy for finding a display name.
type NameLookup struct {
	Source string
	Find   func(ctx context.Context, candidateID, email string) (string, error)
}

// NameResolver turns placeholder names into real ones by trying each lookup
// in order.
type NameResolver struct {
	lookups []NameLookup
	log     zerolog.Logger
}

// NewNameResolver uses the candidate profile, then the student profile, then
// the user account.
func NewNameResolver(profiles ProfileStore, log zerolog.Logger) *NameResolver {
	return NewNameResolverWith(log,
		NameLookup{Source: "candidate_profile", Find: func(ctx context.Context, candidateID, _ string) (string, error) {
			if candidateID == "" {
				return "", repository.ErrNotFound
			}
			return profiles.CandidateFullName(ctx, candidateID)
		}},
		NameLookup{Source: "student_profile", Find: func(ctx context.Context, _, email string) (string, error) {
			if email == "" {
				return "", repository.ErrNotFound
			}
			return profiles.StudentName(ctx, email)
		}},
		NameLookup{Source: "user_account", Find: func(ctx context.Context, _, email string) (string, error) {
			if email == "" {
				return "", repository.ErrNotFound
			}
			return profiles.UserName(ctx, email)
		}},
	)
}

// NewNameResolverWith builds a resolver over an explicit chain.
func NewNameResolverWith(log zerolog.Logger, lookups ...NameLookup) *NameResolver {
	return &NameResolver{
		lookups: lookups,
		log:     log.With().Str("component", "name_resolver").Logger(),
	}
}

// Resolve returns stored unless it looks synthetic, in which case the first
// lookup yielding a real name wins.
func (r *NameResolver) Resolve(ctx context.Context, candidateID, email, stored string) string {
	stored = strings.TrimSpace(stored)
	if !IsSyntheticName(stored, email) {
		return stored
	}

	for _, l := range r.lookups {
		name, err := l.Find(ctx, candidateID, email)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				r.log.Warn().Err(err).Str("source", l.Source).Msg("Name lookup failed")
			}
			continue
		}
		name = strings.TrimSpace(name)
		if !IsSyntheticName(name, email) {
			return name
		}
	}

	switch {
	case stored != "":
		return stored
	case emailLocalPart(email) != "":
		return emailLocalPart(email)
	default:
		return DefaultCandidateName
	}
}

// IsSyntheticName reports whether name is empty or just echoes the email.
func IsSyntheticName(name, email string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	return strings.EqualFold(name, email) || strings.EqualFold(name, emailLocalPart(email))
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
