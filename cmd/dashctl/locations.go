package main

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/courierdash/internal/models"
)

func (a *App) locationCommands() []command {
	return []command{
		{"list", "list [--active]", a.listLocations},
		{"create", "create --name N --country CC [--address1 A] [--city C] [--region R] [--active=false]", a.createLocation},
		{"update", "update ID [--name N] [--country CC] [--address1 A] [--active=false]", a.updateLocation},
		{"delete", "delete ID", a.deleteLocation},
	}
}

// locationFlags are the address fields shared by create and update
type locationFlags struct {
	fs *pflag.FlagSet

	name         string
	country      string
	address1     string
	address2     string
	city         string
	region       string
	postalCode   string
	lat          string
	lng          string
	instructions string
	active       bool
}

func bindLocationFlags(fs *pflag.FlagSet) *locationFlags {
	lf := &locationFlags{fs: fs}
	fs.StringVar(&lf.name, "name", "", "Location name")
	fs.StringVar(&lf.country, "country", "", "ISO 3166 alpha-2 country code")
	fs.StringVar(&lf.address1, "address1", "", "Address line 1")
	fs.StringVar(&lf.address2, "address2", "", "Address line 2")
	fs.StringVar(&lf.city, "city", "", "City")
	fs.StringVar(&lf.region, "region", "", "Region")
	fs.StringVar(&lf.postalCode, "postal-code", "", "Postal code")
	fs.StringVar(&lf.lat, "lat", "", "Latitude")
	fs.StringVar(&lf.lng, "lng", "", "Longitude")
	fs.StringVar(&lf.instructions, "instructions", "", "Pickup instructions")
	fs.BoolVar(&lf.active, "active", true, "Location accepts pickups")
	return lf
}

func (lf *locationFlags) create() models.CreateLocationRequest {
	req := models.CreateLocationRequest{
		Name:         lf.name,
		CountryCode:  lf.country,
		Address1:     lf.address1,
		Address2:     lf.address2,
		City:         lf.city,
		Region:       lf.region,
		PostalCode:   lf.postalCode,
		Latitude:     lf.lat,
		Longitude:    lf.lng,
		Instructions: lf.instructions,
	}
	if lf.fs.Changed("active") {
		req.Active = &lf.active
	}
	return req
}

// update sends only the flags given on the command line
func (lf *locationFlags) update() (models.UpdateLocationRequest, bool) {
	var req models.UpdateLocationRequest
	changed := false

	set := func(flag string, dst **string, v *string) {
		if lf.fs.Changed(flag) {
			*dst = v
			changed = true
		}
	}
	set("name", &req.Name, &lf.name)
	set("country", &req.CountryCode, &lf.country)
	set("address1", &req.Address1, &lf.address1)
	set("address2", &req.Address2, &lf.address2)
	set("city", &req.City, &lf.city)
	set("region", &req.Region, &lf.region)
	set("postal-code", &req.PostalCode, &lf.postalCode)
	set("lat", &req.Latitude, &lf.lat)
	set("lng", &req.Longitude, &lf.lng)
	set("instructions", &req.Instructions, &lf.instructions)
	if lf.fs.Changed("active") {
		req.Active = &lf.active
		changed = true
	}
	return req, changed
}

func (a *App) listLocations(ctx context.Context, args []string) error {
	var activeOnly bool

	fs := a.flags("locations list")
	fs.BoolVar(&activeOnly, "active", false, "Only locations that accept pickups")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	if err := a.protect(ctx, false); err != nil {
		return err
	}

	list := a.locations.List
	if activeOnly {
		list = a.locations.Active
	}
	locations, err := list(ctx)
	if err != nil {
		return err
	}
	return a.printer.Locations(locations)
}

func (a *App) createLocation(ctx context.Context, args []string) error {
	fs := a.flags("locations create")
	lf := bindLocationFlags(fs)
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	if err := a.protect(ctx, true); err != nil {
		return err
	}
	l, err := a.locations.Create(ctx, lf.create())
	if err != nil {
		return err
	}
	return a.printer.Location(l)
}

func (a *App) updateLocation(ctx context.Context, args []string) error {
	fs := a.flags("locations update")
	lf := bindLocationFlags(fs)
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	req, changed := lf.update()
	if !changed {
		return usageError(errNothingToUpdate)
	}

	if err := a.protect(ctx, true); err != nil {
		return err
	}
	l, err := a.locations.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return a.printer.Location(l)
}

func (a *App) deleteLocation(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.protect(ctx, true); err != nil {
		return err
	}
	if err := a.locations.Delete(ctx, id); err != nil {
		return err
	}
	return a.printer.Message("Business location %d deleted", id)
}
