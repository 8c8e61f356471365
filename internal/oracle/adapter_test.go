package oracle

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace/internal/model"
)

type stubSource struct {
	point *model.PricePoint
	err   error
	calls int
}

func (s *stubSource) GetPrice(ctx context.Context, feedID string) (*model.PricePoint, error) {
	s.calls++
	return s.point, s.err
}

func TestAdapter_GetPrice(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		source  *stubSource
		wantErr error
	}{
		{
			name:   "fresh",
			source: &stubSource{point: &model.PricePoint{Value: 100, Expo: -2, PublishTime: now.Add(-30 * time.Second)}},
		},
		{
			name:   "exactly at threshold",
			source: &stubSource{point: &model.PricePoint{Value: 100, Expo: -2, PublishTime: now.Add(-60 * time.Second)}},
		},
		{
			name:    "stale",
			source:  &stubSource{point: &model.PricePoint{Value: 100, Expo: -2, PublishTime: now.Add(-61 * time.Second)}},
			wantErr: model.ErrStalePrice,
		},
		{
			name:    "non positive price",
			source:  &stubSource{point: &model.PricePoint{Value: 0, PublishTime: now}},
			wantErr: model.ErrPriceUnavailable,
		},
		{
			name:    "exponent too large",
			source:  &stubSource{point: &model.PricePoint{Value: 100, Expo: -19, PublishTime: now}},
			wantErr: model.ErrPriceUnavailable,
		},
		{
			name:    "minimal int32 exponent",
			source:  &stubSource{point: &model.PricePoint{Value: 100, Expo: math.MinInt32, PublishTime: now}},
			wantErr: model.ErrPriceUnavailable,
		},
		{
			name:    "source failure",
			source:  &stubSource{err: model.ErrPriceUnavailable},
			wantErr: model.ErrPriceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.source, 60*time.Second, func() time.Time { return now })

			p, err := a.GetPrice(context.Background(), "SOL-USDC")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source.point.Value, p.Value)
		})
	}
}

func TestAdapter_NilSource(t *testing.T) {
	a := NewAdapter(nil, 0, nil)

	_, err := a.GetPrice(context.Background(), "SOL-USDC")
	assert.Equal(t, model.KindOracleUnavailable, model.KindOf(err))
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name           string
		price          int64
		point          model.PricePoint
		nativeDecimals int32
		tokenDecimals  int32
		want           int64
		wantErr        error
	}{
		{
			name:           "divides by positive power",
			price:          100,
			point:          model.PricePoint{Value: 250, Expo: -2},
			nativeDecimals: 9,
			tokenDecimals:  6,
			want:           2500,
		},
		{
			name:           "truncates remainder",
			price:          7,
			point:          model.PricePoint{Value: 3, Expo: -2},
			nativeDecimals: 9,
			tokenDecimals:  6,
			want:           2,
		},
		{
			name:           "positive exponent uses magnitude",
			price:          7,
			point:          model.PricePoint{Value: 3, Expo: 2},
			nativeDecimals: 9,
			tokenDecimals:  6,
			want:           2,
		},
		{
			name:           "negative power multiplies",
			price:          5,
			point:          model.PricePoint{Value: 3, Expo: -8},
			nativeDecimals: 9,
			tokenDecimals:  6,
			want:           1_500_000,
		},
		{
			name:           "zero power",
			price:          12,
			point:          model.PricePoint{Value: 11, Expo: -3},
			nativeDecimals: 9,
			tokenDecimals:  6,
			want:           132,
		},
		{
			name:           "overflow",
			price:          math.MaxInt64,
			point:          model.PricePoint{Value: 10, Expo: -3},
			nativeDecimals: 9,
			tokenDecimals:  6,
			wantErr:        model.ErrAmountOverflow,
		},
		{
			name:           "largest multiplier",
			price:          1,
			point:          model.PricePoint{Value: 1, Expo: -21},
			nativeDecimals: 9,
			tokenDecimals:  6,
			want:           1_000_000_000_000_000_000,
		},
		{
			name:           "multiplier beyond int64",
			price:          1,
			point:          model.PricePoint{Value: 1, Expo: -22},
			nativeDecimals: 9,
			tokenDecimals:  6,
			wantErr:        model.ErrAmountOverflow,
		},
		{
			name:           "minimal int32 exponent",
			price:          100,
			point:          model.PricePoint{Value: 250, Expo: math.MinInt32},
			nativeDecimals: 9,
			tokenDecimals:  6,
			wantErr:        model.ErrAmountOverflow,
		},
		{
			name:           "maximal int32 exponent",
			price:          100,
			point:          model.PricePoint{Value: 250, Expo: math.MaxInt32},
			nativeDecimals: 9,
			tokenDecimals:  6,
			wantErr:        model.ErrAmountOverflow,
		},
		{
			name:           "divisor beyond any product",
			price:          math.MaxInt64,
			point:          model.PricePoint{Value: math.MaxInt64, Expo: 0},
			nativeDecimals: 45,
			tokenDecimals:  0,
			want:           0,
		},
		{
			name:           "large divisor keeps significant digits",
			price:          math.MaxInt64,
			point:          model.PricePoint{Value: math.MaxInt64, Expo: 0},
			nativeDecimals: 37,
			tokenDecimals:  0,
			want:           8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.price, tt.point, tt.nativeDecimals, tt.tokenDecimals)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
