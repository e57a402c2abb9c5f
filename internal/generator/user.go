package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

const (
	userUpdate         = "user_update"
	demographicsUpdate = "demographics_update"
	addressUpdate      = "address_update"
	addressAdd         = "address_add"
)

// User registers customers and evolves their profile. Deactivated users
// leave the working set.
type User struct {
	tk     *Toolkit
	active *WorkingSet[domain.User]
}

func NewUser(tk *Toolkit) *User {
	return &User{tk: tk, active: NewWorkingSet[domain.User]()}
}

func (g *User) Name() string           { return policy.GenUser }
func (g *User) Table() string          { return domain.TableUsers }
func (g *User) Dependencies() []string { return nil }

func (g *User) NextInterval(now time.Time) time.Duration { return g.tk.NextInterval(now) }

func (g *User) Load(ctx context.Context) error {
	rows, err := g.tk.Query(ctx, store.Select(domain.TableUsers).
		Filter(store.Eq("is_active", true)).Order("-created_at").Take(loadLimit))
	if err != nil {
		return err
	}
	g.active.Reset()
	for _, r := range rows {
		u := domain.UserFromRecord(r)
		g.active.Put(u.UserID, u)
	}
	return nil
}

func (g *User) Tick(ctx context.Context) error {
	p := g.tk.Tables().Users
	if g.active.Len() == 0 || g.tk.Chance(p.NewUserChance) {
		return g.register(ctx)
	}
	_, u, _ := g.active.Random(g.tk.Rand())
	switch p.UpdateKinds.Pick(g.tk.Rand()) {
	case userUpdate:
		return g.touch(ctx, u)
	case demographicsUpdate:
		return g.updateDemographics(ctx, u)
	case addressUpdate:
		return g.updateAddress(ctx, u)
	case addressAdd:
		return g.addAddress(ctx, u)
	}
	return ErrNoEligibleUpstream
}

func (g *User) register(ctx context.Context) error {
	tk, p := g.tk, g.tk.Tables().Users
	now := tk.Now()
	f := tk.Fake()

	first, last := f.FirstName(), f.LastName()
	id := tk.NewID()
	u := domain.User{
		UserID:           id,
		Email:            f.Email(first, last, shortTag(id)),
		PasswordHash:     f.PasswordHash(),
		FirstName:        first,
		LastName:         last,
		RegistrationDate: now,
		IsActive:         true,
		Preferences: domain.Preferences{
			Language:      p.Languages.Pick(tk.Rand()),
			Currency:      p.Currencies.Pick(tk.Rand()),
			Notifications: tk.Chance(0.5),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	demo := g.demographics(tk.NewID(), u.UserID, now)
	billing := g.address(u.UserID, domain.AddressBilling, true)
	shipping := g.address(u.UserID, domain.AddressShipping, true)

	if err := tk.InsertAll(ctx,
		store.Into(domain.TableUsers, u.Record()),
		store.Into(domain.TableDemographics, demo.Record()),
		store.Into(domain.TableAddresses, billing.Record()),
		store.Into(domain.TableAddresses, shipping.Record()),
	); err != nil {
		return tk.Duplicate(domain.TableUsers, err)
	}
	g.active.Put(u.UserID, u)

	return errors.Join(
		tk.Emit(ctx, event.TypeNewUser, event.UserRegistered{User: u}),
		tk.Emit(ctx, event.TypeDemographicsRecorded, event.DemographicsChanged{Demographics: demo}),
		tk.Emit(ctx, event.TypeAddressAdded, event.AddressChanged{Address: billing}),
		tk.Emit(ctx, event.TypeAddressAdded, event.AddressChanged{Address: shipping}),
	)
}

// touch records a login, or deactivates the user.
func (g *User) touch(ctx context.Context, u domain.User) error {
	tk := g.tk
	now := tk.Now()
	deactivate := tk.Chance(tk.Tables().Users.DeactivateChance)

	fields := store.Record{"updated_at": now}
	if deactivate {
		fields["is_active"] = false
	} else {
		fields["last_login"] = now
	}
	ok, err := tk.Update(ctx, domain.TableUsers, "user_id", u.UserID, fields)
	if err != nil {
		return err
	}
	if !ok {
		g.active.Remove(u.UserID)
		return fmt.Errorf("%w: user %s is gone", ErrNoEligibleUpstream, u.UserID)
	}

	u.UpdatedAt = now
	if deactivate {
		u.IsActive = false
		g.active.Remove(u.UserID)
	} else {
		u.LastLogin = &now
		g.active.Put(u.UserID, u)
	}
	return tk.Emit(ctx, event.TypeUserUpdate, event.UserUpdated{
		UserID:    u.UserID,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		UpdatedAt: now,
	})
}

func (g *User) updateDemographics(ctx context.Context, u domain.User) error {
	tk := g.tk
	now := tk.Now()
	rows, err := tk.Query(ctx, store.Select(domain.TableDemographics).
		Filter(store.Eq("user_id", u.UserID)).Take(1))
	if err != nil {
		return err
	}
	d := g.demographics(tk.NewID(), u.UserID, now)
	if len(rows) > 0 {
		d.DemographicID = rows[0].String("demographic_id")
		d.CreatedAt = rows[0].Time("created_at")
	}
	if err := tk.Upsert(ctx, domain.TableDemographics, "demographic_id", d.Record()); err != nil {
		return err
	}
	return tk.Emit(ctx, event.TypeDemographicsUpdate, event.DemographicsChanged{Demographics: d})
}

// updateAddress moves one of the user's default addresses.
func (g *User) updateAddress(ctx context.Context, u domain.User) error {
	tk := g.tk
	row, err := tk.Pick(ctx, store.Select(domain.TableAddresses).
		Filter(store.Eq("user_id", u.UserID), store.Eq("is_default", true)))
	if errors.Is(err, ErrNoEligibleUpstream) {
		return g.addAddress(ctx, u)
	}
	if err != nil {
		return err
	}
	current := domain.AddressFromRecord(row)
	a := g.address(u.UserID, current.AddressType, true)
	a.AddressID = current.AddressID
	a.CreatedAt = current.CreatedAt
	if err := tk.Upsert(ctx, domain.TableAddresses, "address_id", a.Record()); err != nil {
		return err
	}
	return tk.Emit(ctx, event.TypeAddressUpdate, event.AddressChanged{Address: a})
}

func (g *User) addAddress(ctx context.Context, u domain.User) error {
	tk := g.tk
	kind := domain.AddressType(tk.Tables().Users.AddressTypes.Pick(tk.Rand()))
	if kind == "" {
		kind = domain.AddressShipping
	}
	a := g.address(u.UserID, kind, false)
	if err := tk.Insert(ctx, domain.TableAddresses, a.Record()); err != nil {
		return err
	}
	return tk.Emit(ctx, event.TypeAddressAdd, event.AddressChanged{Address: a})
}

func (g *User) demographics(id, userID string, now time.Time) domain.Demographics {
	tk, p := g.tk, g.tk.Tables().Users
	return domain.Demographics{
		DemographicID: id,
		UserID:        userID,
		AgeRange:      p.AgeRanges.Pick(tk.Rand()),
		Gender:        p.Genders.Pick(tk.Rand()),
		IncomeBracket: p.IncomeBrackets.Pick(tk.Rand()),
		Occupation:    tk.Fake().Occupation(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (g *User) address(userID string, kind domain.AddressType, isDefault bool) domain.Address {
	tk := g.tk
	now := tk.Now()
	f := tk.Fake()
	return domain.Address{
		AddressID:     tk.NewID(),
		UserID:        userID,
		AddressType:   kind,
		StreetAddress: f.Street(),
		City:          f.City(),
		State:         f.State(),
		Country:       f.Country(),
		PostalCode:    f.PostalCode(),
		IsDefault:     isDefault,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func shortTag(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
