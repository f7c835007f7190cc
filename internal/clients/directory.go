// Package clients maintains the client directory: reusable billing
// profiles kept on a worksheet next to the invoice ledger. Unlike the
// ledger, the directory is mutable: profiles can be updated and deleted.
package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"invoicer/internal/logger"
)

// DefaultSheetName is the worksheet holding client profiles.
const DefaultSheetName = "Clients"

var headers = []string{"Client Name", "Company Name", "Address", "Phone"}

var (
	// ErrNotFound is returned when no profile has the requested name.
	ErrNotFound = errors.New("client not found")

	// ErrDuplicateName is returned when adding or renaming would collide
	// with an existing profile. Names are the directory key.
	ErrDuplicateName = errors.New("client name already exists")
)

// Profile is one saved client.
type Profile struct {
	Name    string
	Company string
	Address string
	Phone   string
}

// Sheet is the worksheet access the directory needs. *sheets.Service
// satisfies it.
type Sheet interface {
	EnsureSheet(ctx context.Context, title string, headers []string) error
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
	Append(ctx context.Context, rangeSpec string, values [][]interface{}) error
	Update(ctx context.Context, rangeSpec string, values [][]interface{}) error
	Clear(ctx context.Context, rangeSpec string) error
}

// Directory is the client profile store.
type Directory struct {
	svc       Sheet
	sheetName string
	log       zerolog.Logger
}

// NewDirectory binds the directory to its worksheet.
func NewDirectory(svc Sheet, sheetName string) *Directory {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Directory{
		svc:       svc,
		sheetName: sheetName,
		log:       logger.WithComponent("clients"),
	}
}

// Ensure creates the worksheet and header row if missing.
func (d *Directory) Ensure(ctx context.Context) error {
	return d.svc.EnsureSheet(ctx, d.sheetName, headers)
}

// List returns all complete profiles in sheet order. Rows missing columns
// are skipped, same as the form ignored partial entries.
func (d *Directory) List(ctx context.Context) ([]Profile, error) {
	const op = "List"

	values, err := d.svc.ReadRange(ctx, d.sheetName+"!A2:D")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var profiles []Profile
	for _, row := range values {
		if len(row) < 4 {
			continue
		}
		p := Profile{
			Name:    str(row[0]),
			Company: str(row[1]),
			Address: str(row[2]),
			Phone:   str(row[3]),
		}
		if p.Name == "" {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Get looks a profile up by name.
func (d *Directory) Get(ctx context.Context, name string) (Profile, error) {
	profiles, err := d.List(ctx)
	if err != nil {
		return Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Add appends a new profile. The name must be unique.
func (d *Directory) Add(ctx context.Context, p Profile) error {
	const op = "Add"

	if p.Name == "" {
		return fmt.Errorf("%s: client name is required", op)
	}

	profiles, err := d.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, existing := range profiles {
		if existing.Name == p.Name {
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicateName, p.Name)
		}
	}

	row := [][]interface{}{{p.Name, p.Company, p.Address, p.Phone}}
	if err := d.svc.Append(ctx, d.sheetName+"!A2", row); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	d.log.Info().Str("client", p.Name).Msg("Client profile added")
	return nil
}

// Update replaces the profile with the given name. Renaming onto an
// existing profile is rejected.
func (d *Directory) Update(ctx context.Context, name string, updated Profile) error {
	const op = "Update"

	profiles, err := d.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	found := false
	for i, p := range profiles {
		if p.Name == name {
			profiles[i] = updated
			found = true
			continue
		}
		if p.Name == updated.Name && updated.Name != name {
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicateName, updated.Name)
		}
	}
	if !found {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, name)
	}

	if err := d.rewrite(ctx, profiles); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	d.log.Info().Str("client", name).Str("new_name", updated.Name).Msg("Client profile updated")
	return nil
}

// Delete removes the profile with the given name.
func (d *Directory) Delete(ctx context.Context, name string) error {
	const op = "Delete"

	profiles, err := d.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	kept := profiles[:0]
	found := false
	for _, p := range profiles {
		if p.Name == name {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, name)
	}

	if err := d.rewrite(ctx, kept); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	d.log.Info().Str("client", name).Msg("Client profile deleted")
	return nil
}

// rewrite clears the data region and writes the profiles back, so deleted
// rows do not linger past the new end of the data.
func (d *Directory) rewrite(ctx context.Context, profiles []Profile) error {
	if err := d.svc.Clear(ctx, d.sheetName+"!A2:D"); err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}
	values := make([][]interface{}, len(profiles))
	for i, p := range profiles {
		values[i] = []interface{}{p.Name, p.Company, p.Address, p.Phone}
	}
	return d.svc.Update(ctx, d.sheetName+"!A2:D", values)
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
