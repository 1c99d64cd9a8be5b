package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/estoque/internal/domain"
)

const (
	receivementsPath = "/api/receivements"
	exitsPath        = "/api/exits"
)

// page is one Spring Data page.
type page[T any] struct {
	Content    []T  `json:"content"`
	TotalPages int  `json:"totalPages"`
	Last       bool `json:"last"`
	Number     int  `json:"number"`
}

type receivementDTO struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"productId"`
	SupplierName  string           `json:"supplierName"`
	InventoryCode string           `json:"inventoryCode"`
	Description   string           `json:"description"`
	Quantity      *int             `json:"quantity"`
	TotalPrice    *decimal.Decimal `json:"totalPrice"`
	ReceivingDate string           `json:"receivingDate"`
	Status        string           `json:"status"`
}

func (r receivementDTO) transaction() domain.Transaction {
	return domain.Transaction{
		ID:            r.ID,
		ProductID:     r.ProductID,
		ProductName:   r.Description,
		InventoryCode: r.InventoryCode,
		Quantity:      r.Quantity,
		TotalPrice:    r.TotalPrice,
		Date:          r.ReceivingDate,
		Direction:     domain.DirectionIn,
		Status:        domain.TransactionStatus(r.Status),
	}
}

type exitDTO struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"productId"`
	ProductName   string           `json:"productName"`
	UnitPrice     *decimal.Decimal `json:"unitPrice"`
	TotalPrice    *decimal.Decimal `json:"totalPrice"`
	Quantity      *int             `json:"quantity"`
	InventoryCode string           `json:"inventoryCode"`
	Status        string           `json:"status"`
	ExitDate      string           `json:"exitDate"`
}

func (e exitDTO) transaction() domain.Transaction {
	return domain.Transaction{
		ID:            e.ID,
		ProductID:     e.ProductID,
		ProductName:   e.ProductName,
		InventoryCode: e.InventoryCode,
		Quantity:      e.Quantity,
		UnitPrice:     e.UnitPrice,
		TotalPrice:    e.TotalPrice,
		Date:          e.ExitDate,
		Direction:     domain.DirectionOut,
		Status:        domain.TransactionStatus(e.Status),
	}
}

// Receivements fetches every receivement page.
func (c *Client) Receivements(ctx context.Context, token string) ([]domain.Transaction, error) {
	return fetchAll(ctx, c, receivementsPath, token, receivementDTO.transaction)
}

// Exits fetches every exit page.
func (c *Client) Exits(ctx context.Context, token string) ([]domain.Transaction, error) {
	return fetchAll(ctx, c, exitsPath, token, exitDTO.transaction)
}

// Transactions fetches the lists needed for dir. With DirectionBoth both lists
// are fetched concurrently; the receivements come first in the result.
func (c *Client) Transactions(ctx context.Context, token string, dir domain.Direction) ([]domain.Transaction, error) {
	switch dir {
	case domain.DirectionIn:
		return c.Receivements(ctx, token)
	case domain.DirectionOut:
		return c.Exits(ctx, token)
	}

	var in, out []domain.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in, err = c.Receivements(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		out, err = c.Exits(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]domain.Transaction, 0, len(in)+len(out))
	all = append(all, in...)
	return append(all, out...), nil
}

// fetchAll reads page 0 to learn the page count, then fetches the remaining
// pages concurrently. Items keep the backend's page order.
func fetchAll[T any](ctx context.Context, c *Client, path, token string, convert func(T) domain.Transaction) ([]domain.Transaction, error) {
	first, err := fetchPage[T](ctx, c, path, token, 0)
	if err != nil {
		return nil, err
	}
	if first.Last || len(first.Content) == 0 || first.TotalPages <= 1 {
		return convertAll(first.Content, convert), nil
	}

	total := first.TotalPages
	if total > maxPages {
		c.logger.WarnContext(ctx, "page limit reached", "path", path, "pages", total, "limit", maxPages)
		total = maxPages
	}

	pages := make([][]T, total)
	pages[0] = first.Content

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPageFetchers)
	for n := 1; n < total; n++ {
		n := n
		g.Go(func() error {
			p, err := fetchPage[T](gctx, c, path, token, n)
			if err != nil {
				return err
			}
			pages[n] = p.Content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Transaction
	for _, content := range pages {
		out = append(out, convertAll(content, convert)...)
	}
	return out, nil
}

func fetchPage[T any](ctx context.Context, c *Client, path, token string, n int) (page[T], error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(n))
	q.Set("size", fmt.Sprint(c.config.PageSize))

	var p page[T]
	if err := c.doRequest(ctx, http.MethodGet, path+"?"+q.Encode(), token, nil, &p); err != nil {
		return p, toAppError(fmt.Errorf("fetch %s page %d: %w", path, n, err), domain.ErrUnauthorized)
	}
	return p, nil
}

func convertAll[T any](items []T, convert func(T) domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		out = append(out, convert(item))
	}
	return out
}
