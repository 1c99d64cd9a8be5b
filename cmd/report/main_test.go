package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/estoque/internal/analytics"
	"github.com/saturnino-fabrica-de-software/estoque/internal/dashboard"
)

type fakeSource struct {
	queries []dashboard.Query
	err     error
}

func (f *fakeSource) Weekly(_ context.Context, _ string, q dashboard.Query) (analytics.WeeklySeries, error) {
	f.queries = append(f.queries, q)
	return analytics.WeeklySeries{
		Points: []analytics.WeeklyPoint{
			{Label: "2024-W03", Year: 2024, Week: 3, EntryQuantity: 14, EntryValue: "28.00", ExitQuantity: 3, ExitValue: "6.00"},
		},
		Skipped: 1,
	}, f.err
}

func (f *fakeSource) TopProducts(_ context.Context, _ string, q dashboard.Query) ([]analytics.ProductRow, error) {
	f.queries = append(f.queries, q)
	return []analytics.ProductRow{{ProductID: "p1", Name: "Parafuso", UnitPrice: "2.00", Quantity: 3, Amount: "6.00"}}, nil
}

func (f *fakeSource) InventoryCodes(_ context.Context, _ string, q dashboard.Query) ([]analytics.InventorySlice, error) {
	f.queries = append(f.queries, q)
	return []analytics.InventorySlice{{Code: "INV-A", Count: 2}}, nil
}

type fakeAuth struct {
	token string
	err   error
}

func (f fakeAuth) Login(context.Context, string, string) (string, error) {
	return f.token, f.err
}

func TestBuildAndPrint(t *testing.T) {
	src := &fakeSource{}
	r, err := build(context.Background(), src, "tok", options{weeks: 4, top: 3, excludeCanceled: true})
	require.NoError(t, err)

	require.Len(t, src.queries, 3)
	for _, q := range src.queries {
		assert.Equal(t, 4, q.Limit)
		assert.Equal(t, 3, q.TopN)
		assert.True(t, q.ExcludeCanceled)
	}

	var out bytes.Buffer
	require.NoError(t, printReport(&out, r))

	text := out.String()
	assert.Contains(t, text, "2024-W03")
	assert.Contains(t, text, "28.00")
	assert.Contains(t, text, "1 transactions without a valid date skipped")
	assert.Contains(t, text, "Parafuso")
	assert.Contains(t, text, "INV-A")
}

func TestBuild_Error(t *testing.T) {
	_, err := build(context.Background(), &fakeSource{err: errors.New("backend down")}, "tok", options{})
	assert.ErrorContains(t, err, "weekly: backend down")
}

func TestResolveToken(t *testing.T) {
	sign := func(exp time.Time) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
		require.NoError(t, err)
		return tok
	}
	valid := sign(time.Now().Add(time.Hour))

	tests := []struct {
		name      string
		token     string
		email     string
		password  string
		auth      fakeAuth
		wantToken string
		wantErr   string
	}{
		{name: "explicit token", token: valid, wantToken: valid},
		{name: "expired token", token: sign(time.Now().Add(-time.Hour)), wantErr: "expired"},
		{name: "login", email: "admin@estoque.dev", password: "pw", auth: fakeAuth{token: "fresh"}, wantToken: "fresh"},
		{name: "login fails", email: "admin@estoque.dev", password: "pw", auth: fakeAuth{err: errors.New("401")}, wantErr: "login: 401"},
		{name: "nothing given", wantErr: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveToken(context.Background(), tt.auth, tt.token, tt.email, tt.password)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, got)
		})
	}
}
