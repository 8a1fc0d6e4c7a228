package synth

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/developer-rs5/easy-mongoo/hook"
	"github.com/developer-rs5/easy-mongoo/schema"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugHook derives SlugField from the source field before a save. It
// only fires when the source changed and no slug value is present, so
// an explicitly assigned slug always survives.
func slugHook(source string) hook.Hook {
	return func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			if m.FieldChanged(source) {
				cur, _ := m.Field(SlugField)
				if s, _ := cur.(string); s == "" {
					v, ok := m.Field(source)
					if src, _ := v.(string); ok && src != "" {
						if err := m.SetField(SlugField, Slugify(src)); err != nil {
							return nil, err
						}
					}
				}
			}
			return next.Mutate(ctx, m)
		})
	}
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify folds diacritics, lowercases, and collapses every run of
// non-alphanumeric characters into a single hyphen: "Crème Brûlée!"
// becomes "creme-brulee".
func Slugify(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	hyphen := true // suppress a leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		default:
			if !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// hashHook replaces the secret field's plaintext with a bcrypt digest
// before a save. It only fires when the field changed, and leaves
// values that already look like a bcrypt digest alone so re-saving a
// loaded document never double-hashes.
func hashHook(secret string) hook.Hook {
	return func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			if m.FieldChanged(secret) {
				v, _ := m.Field(secret)
				if s, _ := v.(string); s != "" && !strings.HasPrefix(s, "$2") {
					digest, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
					if err != nil {
						return nil, err
					}
					if err := m.SetField(secret, string(digest)); err != nil {
						return nil, err
					}
				}
			}
			return next.Mutate(ctx, m)
		})
	}
}

// VerifyPassword reports if plain matches a digest produced by the
// password hash hook.
func VerifyPassword(digest, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// touchHook refreshes the updated-at field before an update.
func touchHook(updatedAt string) hook.Hook {
	return func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			if err := m.SetField(updatedAt, time.Now().UTC()); err != nil {
				return nil, err
			}
			return next.Mutate(ctx, m)
		})
	}
}

// observeHook logs completed writes through the logger carried in the
// context. Without one, zerolog hands back a disabled logger and the
// hook is a no-op.
func observeHook() hook.Hook {
	return func(next hook.Mutator) hook.Mutator {
		return hook.MutateFunc(func(ctx context.Context, m hook.Mutation) (schema.Document, error) {
			doc, err := next.Mutate(ctx, m)
			if err != nil {
				return nil, err
			}
			zerolog.Ctx(ctx).Debug().
				Str("model", m.Model()).
				Str("op", m.Op().String()).
				Msg("document written")
			return doc, nil
		})
	}
}
