package security

import (
	"errors"
	"strings"
	"sync"

	"github.com/aq2208/gorder-storefront/configs"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("invalid email or password")

// Accounts is the login registry loaded from security.accounts.
type Accounts struct {
	byEmail map[string]configs.Account
}

func NewAccounts(list []configs.Account) *Accounts {
	a := &Accounts{byEmail: make(map[string]configs.Account, len(list))}
	for _, acc := range list {
		if acc.Role == "" {
			acc.Role = usecase.RoleCustomer
		}
		a.byEmail[normalizeEmail(acc.Email)] = acc
	}
	return a
}

// Authenticate checks the password against the stored bcrypt hash. Unknown
// emails still pay for one comparison so timing does not reveal them.
func (a *Accounts) Authenticate(email, password string) (usecase.Principal, error) {
	acc, ok := a.byEmail[normalizeEmail(email)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return usecase.Principal{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return usecase.Principal{}, ErrBadCredentials
	}
	return usecase.Principal{UserID: acc.ID, Email: acc.Email, Role: acc.Role}, nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("storefront-no-such-account"), bcrypt.DefaultCost)
	return h
})
