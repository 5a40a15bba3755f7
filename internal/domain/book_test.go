package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyRating(t *testing.T) {
	tests := []struct {
		name        string
		average     float64
		count       int
		rating      int
		wantAverage float64
		wantCount   int
	}{
		{"first rating", 0, 0, 4, 4.0, 1},
		{"fold into existing", 3.0, 2, 5, 11.0 / 3.0, 3},
		{"same rating keeps average", 4.0, 10, 4, 4.0, 11},
		{"low rating pulls down", 5.0, 1, 1, 3.0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Book{AverageRating: tt.average, ReviewCount: tt.count}
			b.ApplyRating(tt.rating)
			assert.InDelta(t, tt.wantAverage, b.AverageRating, 1e-9)
			assert.Equal(t, tt.wantCount, b.ReviewCount)
		})
	}
}

func TestReviewValidate(t *testing.T) {
	valid := Review{UserID: 1, BookID: 1, Rating: 3}
	assert.NoError(t, valid.Validate())

	for _, rating := range []int{0, -1, 6, 100} {
		r := Review{UserID: 1, BookID: 1, Rating: rating}
		assert.Error(t, r.Validate(), "rating %d", rating)
	}

	assert.Error(t, (&Review{UserID: 0, BookID: 1, Rating: 3}).Validate())
	assert.Error(t, (&Review{UserID: 1, BookID: 0, Rating: 3}).Validate())
}
