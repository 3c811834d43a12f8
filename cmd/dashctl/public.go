package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/service/confirmation"
)

// track shows public tracking pages. No login needed
func (a *App) track(ctx context.Context, args []string) error {
	var watch bool
	var interval time.Duration

	fs := a.flags("track")
	fs.BoolVarP(&watch, "watch", "w", false, "Keep polling and print status changes until delivered or cancelled")
	fs.DurationVar(&interval, "interval", a.watcher.Interval, "Polling interval of --watch")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	tokens := fs.Args()
	if len(tokens) == 0 {
		return fmt.Errorf("%w: at least one tracking token is required", errUsage)
	}

	if !watch {
		for _, token := range tokens {
			t, err := a.tracking.Track(ctx, token)
			if err != nil {
				return fmt.Errorf("track %s: %w", token, err)
			}
			if err := a.printer.Tracking(t); err != nil {
				return err
			}
		}
		return nil
	}

	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", errUsage)
	}
	a.watcher.Interval = interval
	for u := range a.watcher.Watch(ctx, tokens...) {
		if err := a.printer.Update(u); err != nil {
			return err
		}
	}
	return nil
}

// confirm shows the delivery behind a confirmation link and submits
// the recipient details when they are given
func (a *App) confirm(ctx context.Context, args []string) error {
	var req models.ConfirmRequest

	fs := a.flags("confirm")
	fs.StringVar(&req.FullName, "name", "", "Recipient full name")
	fs.StringVar(&req.Phone, "phone", "", "Recipient phone")
	fs.StringVar(&req.Email, "email", "", "Recipient email")
	fs.StringVar(&req.Dropoff.Address1, "address1", "", "Dropoff address line 1")
	fs.StringVar(&req.Dropoff.Address2, "address2", "", "Dropoff address line 2")
	fs.StringVar(&req.Dropoff.City, "city", "", "Dropoff city")
	fs.StringVar(&req.Dropoff.Region, "region", "", "Dropoff region")
	fs.StringVar(&req.Dropoff.PostalCode, "postal-code", "", "Dropoff postal code")
	fs.StringVar(&req.Dropoff.CountryCode, "country", "", "Dropoff ISO 3166 alpha-2 country code")
	fs.StringVar(&req.Dropoff.Latitude, "lat", "", "Dropoff latitude")
	fs.StringVar(&req.Dropoff.Longitude, "lng", "", "Dropoff longitude")
	fs.StringVar(&req.Dropoff.Instructions, "instructions", "", "Dropoff instructions")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected exactly one confirmation token", errUsage)
	}
	req.Token = fs.Arg(0)

	preview, err := a.confirmation.Preview(ctx, req.Token)
	if err != nil {
		return err
	}
	if !preview.NeedsConfirmation() {
		if err := a.printer.Tracking(preview.Delivery); err != nil {
			return err
		}
		fmt.Fprintf(a.errOut, "Already confirmed, follow it with `dashctl track %s` (%s)\n", req.Token, confirmation.TrackPath(req.Token))
		return nil
	}

	// Preview only
	if fs.NFlag() == 0 {
		if err := a.printer.Tracking(preview.Delivery); err != nil {
			return err
		}
		fmt.Fprintln(a.errOut, "Awaiting confirmation, run again with --name, --phone and the dropoff address")
		return nil
	}

	confirmed, err := a.confirmation.Confirm(ctx, req)
	if err != nil {
		return err
	}
	return a.printer.Tracking(confirmed.Delivery)
}
