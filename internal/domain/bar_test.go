package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barAt(minute int, close float64) Bar {
	return Bar{
		Time:   time.Date(2024, 1, 2, 14, 30+minute, 0, 0, time.UTC),
		Open:   close,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 1000,
	}
}

func TestBar_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bar     Bar
		wantErr bool
	}{
		{name: "valid", bar: barAt(0, 100)},
		{name: "zero time", bar: Bar{Open: 1, High: 1, Low: 1, Close: 1}, wantErr: true},
		{name: "high below close", bar: Bar{Time: time.Now(), Open: 1, High: 1.5, Low: 1, Close: 2}, wantErr: true},
		{name: "low above open", bar: Bar{Time: time.Now(), Open: 1, High: 3, Low: 1.5, Close: 2}, wantErr: true},
		{name: "negative volume", bar: Bar{Time: time.Now(), Open: 1, High: 1, Low: 1, Close: 1, Volume: -1}, wantErr: true},
		{name: "nan volume", bar: Bar{Time: time.Now(), Open: 1, High: 1, Low: 1, Close: 1, Volume: math.NaN()}, wantErr: true},
		{name: "price only row", bar: Bar{Time: time.Now(), Volume: 100}, wantErr: true},
		{name: "negative low", bar: Bar{Time: time.Now(), Open: 1, High: 1, Low: -1, Close: 1}, wantErr: true},
		{name: "nan close", bar: Bar{Time: time.Now(), Open: 1, High: 1, Low: 1, Close: math.NaN()}, wantErr: true},
		{name: "infinite high", bar: Bar{Time: time.Now(), Open: 1, High: math.Inf(1), Low: 1, Close: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bar.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewSeries_InvalidCapacity(t *testing.T) {
	_, err := NewSeries(0)
	assert.Error(t, err)
}

func TestSeries_EvictsOldest(t *testing.T) {
	s, err := NewSeries(3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(barAt(i, float64(100+i))))
		assert.LessOrEqual(t, s.Len(), s.Cap())
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{102, 103, 104}, s.Closes())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 104.0, latest.Close)
}

func TestSeries_ReplacesFormingBar(t *testing.T) {
	s, err := NewSeries(10)
	require.NoError(t, err)

	require.NoError(t, s.Append(barAt(0, 100), barAt(1, 101)))
	require.NoError(t, s.Append(barAt(1, 105), barAt(2, 106)))

	assert.Equal(t, []float64{100, 105, 106}, s.Closes())
}

func TestSeries_RejectsOutOfOrder(t *testing.T) {
	s, err := NewSeries(10)
	require.NoError(t, err)
	require.NoError(t, s.Append(barAt(0, 100), barAt(5, 105)))

	err = s.Append(barAt(6, 106), barAt(3, 103))
	require.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, []float64{100, 105}, s.Closes(), "rejected batch must not be partially applied")
}

func TestSeries_BarsReturnsCopy(t *testing.T) {
	s, err := NewSeries(2)
	require.NoError(t, err)
	require.NoError(t, s.Append(barAt(0, 100)))

	bars := s.Bars()
	bars[0].Close = 1

	assert.Equal(t, []float64{100}, s.Closes())
	assert.Equal(t, []float64{1000}, s.Volumes())
}

func TestSeries_LatestEmpty(t *testing.T) {
	s, err := NewSeries(2)
	require.NoError(t, err)

	_, ok := s.Latest()
	assert.False(t, ok)
}

func TestSeries_Reset(t *testing.T) {
	s, err := NewSeries(3)
	require.NoError(t, err)
	require.NoError(t, s.Append(barAt(0, 1), barAt(1, 2)))

	s.Reset()
	assert.Zero(t, s.Len())
	assert.Equal(t, 3, s.Cap())

	require.NoError(t, s.Append(barAt(0, 5)))
	assert.Equal(t, []float64{5}, s.Closes())
}
