package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/service/delivery"
)

func (a *App) deliveryCommands() []command {
	return []command{
		{"list", "list [--search Q] [--page N]", a.listDeliveries},
		{"stats", "stats", a.deliveryStats},
		{"get", "get ID", a.getDelivery},
		{"create", "create --file F | --location ID --contact-name N --contact-phone P --recipient-email E --item NAME[:QTY]...", a.createDelivery},
		{"update", "update ID [--description D] [--price P]", a.updateDelivery},
		{"cancel", "cancel ID", a.cancelDelivery},
		{"delete", "delete ID", a.deleteDelivery},
	}
}

func (a *App) listDeliveries(ctx context.Context, args []string) error {
	var query string
	var page int

	fs := a.flags("deliveries list")
	fs.StringVarP(&query, "search", "s", "", "Filter by tracking id, description or status")
	fs.IntVar(&page, "page", 1, "Page number")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	if err := a.protect(ctx, false); err != nil {
		return err
	}
	list, err := a.deliveries.List(ctx)
	if err != nil {
		return err
	}
	return a.printer.DeliveryPage(delivery.Paginate(delivery.Search(list, query), page))
}

func (a *App) deliveryStats(ctx context.Context, _ []string) error {
	if err := a.protect(ctx, false); err != nil {
		return err
	}
	list, err := a.deliveries.List(ctx)
	if err != nil {
		return err
	}
	return a.printer.Stats(delivery.Summarize(list))
}

func (a *App) getDelivery(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.protect(ctx, false); err != nil {
		return err
	}
	d, err := a.deliveries.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.printer.Delivery(d)
}

func (a *App) createDelivery(ctx context.Context, args []string) error {
	var (
		file         string
		locationID   int64
		contactName  string
		contactPhone string
		instructions string
		price        string
		items        []string
		req          models.CreateDeliveryRequest
	)

	fs := a.flags("deliveries create")
	fs.StringVarP(&file, "file", "f", "", "Read the whole request as JSON, - for stdin")
	fs.Int64Var(&locationID, "location", 0, "Business location to pick up from")
	fs.StringVar(&contactName, "contact-name", "", "Pickup contact name")
	fs.StringVar(&contactPhone, "contact-phone", "", "Pickup contact phone")
	fs.StringVar(&instructions, "instructions", "", "Pickup instructions")
	fs.StringVar(&req.RecipientEmail, "recipient-email", "", "Recipient gets the confirmation link by email")
	fs.StringVar(&req.Description, "description", "", "Delivery description")
	fs.StringVar(&price, "price", "0", "Delivery price")
	fs.StringArrayVar(&items, "item", nil, "Item as NAME or NAME:QUANTITY, repeatable")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	if err := a.protect(ctx, true); err != nil {
		return err
	}

	if file != "" {
		if err := a.readJSON(file, &req); err != nil {
			return err
		}
	} else {
		var err error
		if req.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("%w: invalid price %q", errUsage, price)
		}
		if req.Items, err = parseItems(items); err != nil {
			return err
		}
		if req.Pickup, err = a.pickupFrom(ctx, locationID); err != nil {
			return err
		}
		req.Pickup.ContactName = contactName
		req.Pickup.ContactPhone = contactPhone
		req.Pickup.Instructions = instructions
	}

	d, err := a.deliveries.Create(ctx, req)
	if err != nil {
		return err
	}
	return a.printer.Delivery(d)
}

// pickupFrom copies the address of an active business location
func (a *App) pickupFrom(ctx context.Context, locationID int64) (models.PickupAddress, error) {
	if locationID == 0 {
		return models.PickupAddress{}, fmt.Errorf("%w: --location or --file is required", errUsage)
	}

	active, err := a.locations.Active(ctx)
	if err != nil {
		return models.PickupAddress{}, err
	}
	for _, l := range active {
		if l.ID == locationID {
			return models.PickupAddress{
				Address1:     l.Address1,
				Address2:     l.Address2,
				City:         l.City,
				Region:       l.Region,
				PostalCode:   l.PostalCode,
				CountryCode:  l.CountryCode,
				Latitude:     l.Latitude,
				Longitude:    l.Longitude,
				Instructions: l.Instructions,
			}, nil
		}
	}
	return models.PickupAddress{}, fmt.Errorf("active business location %d: %w", locationID, apperrors.ErrNotFound)
}

func parseItems(values []string) ([]models.NewDeliveryItem, error) {
	items := make([]models.NewDeliveryItem, 0, len(values))
	for _, v := range values {
		item := models.NewDeliveryItem{Name: v, Quantity: 1}
		if i := strings.LastIndex(v, ":"); i >= 0 {
			qty, err := strconv.Atoi(v[i+1:])
			if err != nil {
				return nil, fmt.Errorf("%w: invalid item quantity in %q", errUsage, v)
			}
			item.Name, item.Quantity = v[:i], qty
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *App) readJSON(path string, dst any) error {
	var r io.Reader = a.in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", errUsage, path, err)
	}
	return nil
}

func (a *App) updateDelivery(ctx context.Context, args []string) error {
	var description, price string

	fs := a.flags("deliveries update")
	fs.StringVar(&description, "description", "", "New description")
	fs.StringVar(&price, "price", "", "New price")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	id, err := parseID(fs.Args())
	if err != nil {
		return err
	}

	var req models.UpdateDeliveryRequest
	if fs.Changed("description") {
		req.Description = &description
	}
	if fs.Changed("price") {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("%w: invalid price %q", errUsage, price)
		}
		req.Price = &p
	}
	if req.Description == nil && req.Price == nil {
		return usageError(errNothingToUpdate)
	}

	if err := a.protect(ctx, true); err != nil {
		return err
	}
	d, err := a.deliveries.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return a.printer.Delivery(d)
}

func (a *App) cancelDelivery(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.protect(ctx, true); err != nil {
		return err
	}
	d, err := a.deliveries.Cancel(ctx, id)
	if err != nil {
		return err
	}
	return a.printer.Delivery(d)
}

func (a *App) deleteDelivery(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.protect(ctx, true); err != nil {
		return err
	}
	if err := a.deliveries.Delete(ctx, id); err != nil {
		return err
	}
	return a.printer.Message("Delivery %d deleted", id)
}
