package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/google/uuid"
)

type AddressInput struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	FullName   string `json:"fullName,omitempty"`
	Company    string `json:"company,omitempty"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	IsDefault  bool   `json:"isDefault"`
}

type Addresses struct {
	repo AddressRepo
	now  func() time.Time
}

func NewAddresses(repo AddressRepo) *Addresses {
	return &Addresses{repo: repo, now: time.Now}
}

func (uc *Addresses) Create(ctx context.Context, p Principal, in AddressInput) (*domain.Address, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" && last == "" && in.FullName != "" {
		first, last = domain.SplitFullName(in.FullName)
	}
	a := &domain.Address{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		FirstName:  first,
		LastName:   last,
		Company:    strings.TrimSpace(in.Company),
		Address1:   strings.TrimSpace(in.Address1),
		Address2:   strings.TrimSpace(in.Address2),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
		Phone:      strings.TrimSpace(in.Phone),
		IsDefault:  in.IsDefault,
		CreatedAt:  uc.now().UTC(),
	}
	if missing := a.MissingFields(); len(missing) > 0 {
		return nil, newErr(ErrBadRequest, "Missing required fields: %s", strings.Join(missing, ", "))
	}
	if err := uc.repo.Create(ctx, a); err != nil {
		return nil, internal(err, "create address")
	}
	logging.FromCtx(ctx).Info("address created", "address_id", a.ID, "user_id", p.UserID, "default", a.IsDefault)
	return a, nil
}

func (uc *Addresses) List(ctx context.Context, p Principal) ([]domain.Address, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	list, err := uc.repo.List(ctx, p.UserID)
	if err != nil {
		return nil, internal(err, "list addresses")
	}
	if list == nil {
		list = []domain.Address{}
	}
	return list, nil
}

// Get hides addresses owned by someone else behind NotFound.
func (uc *Addresses) Get(ctx context.Context, p Principal, id string) (*domain.Address, error) {
	if !p.Authenticated() {
		return nil, newErr(ErrUnauthorized, "Unauthorized")
	}
	a, err := uc.repo.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) || (err == nil && a.UserID != p.UserID) {
		return nil, newErr(ErrNotFound, "Address not found")
	}
	if err != nil {
		return nil, internal(err, "get address")
	}
	return a, nil
}

func (uc *Addresses) SetDefault(ctx context.Context, p Principal, id string) (*domain.Address, error) {
	if _, err := uc.Get(ctx, p, id); err != nil {
		return nil, err
	}
	if err := uc.repo.SetDefault(ctx, p.UserID, id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, newErr(ErrNotFound, "Address not found")
		}
		return nil, internal(err, "set default address")
	}
	return uc.Get(ctx, p, id)
}

func (uc *Addresses) Delete(ctx context.Context, p Principal, id string) error {
	if !p.Authenticated() {
		return newErr(ErrUnauthorized, "Unauthorized")
	}
	err := uc.repo.Delete(ctx, p.UserID, id)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return newErr(ErrNotFound, "Address not found")
	case errors.Is(err, ErrInUse):
		return wrapErr(ErrConflict, err, "Address is used by an existing order")
	case err != nil:
		return internal(err, "delete address")
	}
	return nil
}
