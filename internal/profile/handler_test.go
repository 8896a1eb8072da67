package profile_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/fitcoach/internal/profile"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fakeProfile(userID string) profile.Profile {
	return profile.Profile{
		UserID:            userID,
		Name:              gofakeit.Name(),
		Age:               gofakeit.Number(18, 80),
		HeightCm:          float64(gofakeit.Number(150, 200)),
		WeightKg:          float64(gofakeit.Number(50, 120)),
		Gender:            profile.GenderFemale,
		Goal:              profile.GoalGain,
		ActivityLevel:     profile.ActivityActive,
		WorkoutsCompleted: gofakeit.Number(0, 30),
		CaloriesBurned:    gofakeit.Number(0, 3000),
		Streak:            gofakeit.Number(0, 10),
	}
}

func newTestRouter(store *MockprofileStore) *mux.Router {
	r := mux.NewRouter()
	profile.NewHandler(store).SetupRoutes(r)
	return r
}

func TestHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockprofileStore(ctrl)
	userID := gofakeit.LetterN(12)
	p := fakeProfile(userID)

	store.EXPECT().Init(gomock.Any(), userID).Return(p, nil)

	rr := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/profile/"+userID, nil)
	require.NoError(t, err)
	newTestRouter(store).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got profile.Profile
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, p, got)
}

func TestHandler_GetInvalidUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockprofileStore(ctrl)

	rr := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/profile/bad%20user", nil)
	require.NoError(t, err)
	newTestRouter(store).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockprofileStore(ctrl)
	userID := "runner_1"
	p := fakeProfile(userID)

	store.EXPECT().
		Update(gomock.Any(), userID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, u profile.Update) (profile.Profile, error) {
			require.NotNil(t, u.WeightKg)
			assert.Equal(t, 80.5, *u.WeightKg)
			assert.Nil(t, u.Age)
			return p, nil
		})

	rr := httptest.NewRecorder()
	req, err := http.NewRequest("PUT", "/profile/"+userID, bytes.NewBufferString(`{"weight": 80.5}`))
	require.NoError(t, err)
	newTestRouter(store).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	store.EXPECT().
		Update(gomock.Any(), userID, gomock.Any()).
		Return(profile.Profile{}, fmt.Errorf("%w: age 0", profile.ErrInvalidProfile))
	rr = httptest.NewRecorder()
	req, err = http.NewRequest("PUT", "/profile/"+userID, bytes.NewBufferString(`{"age": 0}`))
	require.NoError(t, err)
	newTestRouter(store).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	req, err = http.NewRequest("PUT", "/profile/"+userID, bytes.NewBufferString(`{"age":`))
	require.NoError(t, err)
	newTestRouter(store).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_MetricsAndAchievements(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockprofileStore(ctrl)
	p := profile.Default("u1")
	p.WorkoutsCompleted = 5

	store.EXPECT().Init(gomock.Any(), "u1").Return(p, nil).Times(2)
	router := newTestRouter(store)

	rr := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/profile/u1/metrics", nil)
	require.NoError(t, err)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var m profile.HealthMetrics
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, 2507, m.DailyCalories)
	assert.Equal(t, 1617.5, m.BMR)

	rr = httptest.NewRecorder()
	req, err = http.NewRequest("GET", "/profile/u1/achievements", nil)
	require.NoError(t, err)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var achievements []profile.Achievement
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &achievements))
	require.Len(t, achievements, 3)
	assert.Equal(t, 50.0, achievements[0].Progress)
}

func TestHandler_WorkoutComplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockprofileStore(ctrl)
	router := newTestRouter(store)

	gomock.InOrder(
		store.EXPECT().
			LogWorkoutCompletion(gomock.Any(), "u1", 50, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ int, now time.Time) (profile.Profile, error) {
				assert.WithinDuration(t, time.Now(), now, time.Minute)
				return profile.Default("u1"), nil
			}),
		store.EXPECT().
			LogWorkoutCompletion(gomock.Any(), "u1", 250, gomock.Any()).
			Return(profile.Default("u1"), nil),
		store.EXPECT().
			LogWorkoutCompletion(gomock.Any(), "u1", 10, gomock.Any()).
			Return(profile.Profile{}, errors.New("redis down")),
	)

	for _, tc := range []struct {
		body   string
		status int
	}{
		{body: `{"durationSeconds": 600, "difficulty": "intermediate"}`, status: http.StatusOK},
		{body: `{"calories": 250}`, status: http.StatusOK},
		{body: `{"calories": 10}`, status: http.StatusInternalServerError},
		{body: `{"durationSeconds": 600, "difficulty": "insane"}`, status: http.StatusBadRequest},
		{body: `{}`, status: http.StatusBadRequest},
	} {
		rr := httptest.NewRecorder()
		req, err := http.NewRequest("POST", "/profile/u1/workouts/complete", bytes.NewBufferString(tc.body))
		require.NoError(t, err)
		router.ServeHTTP(rr, req)
		assert.Equal(t, tc.status, rr.Code, tc.body)
	}
}
