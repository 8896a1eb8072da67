package test

import (
	"context"
	"net/http"

	"github.com/2beens/fitcoach/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestProfile() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	resp, err := s.httpClient.Do(s.newRequest(ctx, "GET", "/profile/it-user", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p profile.Profile
	require.NoError(t, decodeBody(resp, &p))
	assert.Equal(t, profile.Default("it-user"), p)

	resp, err = s.httpClient.Do(s.newRequest(ctx, "PUT", "/profile/it-user",
		`{"name": "Ana", "weight": 62.5, "gender": "female"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, decodeBody(resp, &p))
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, 62.5, p.WeightKg)

	resp, err = s.httpClient.Do(s.newRequest(ctx, "PUT", "/profile/it-user", `{"age": 400}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = s.httpClient.Do(s.newRequest(ctx, "POST", "/profile/it-user/workouts/complete",
		`{"calories": 120, "durationSeconds": 900, "difficulty": "beginner"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, decodeBody(resp, &p))
	assert.Equal(t, 1, p.WorkoutsCompleted)
	assert.Equal(t, 120, p.CaloriesBurned)
	assert.Equal(t, 1, p.Streak)

	// the write went through to redis, a fresh read agrees
	resp, err = s.httpClient.Do(s.newRequest(ctx, "GET", "/profile/it-user", ""))
	require.NoError(t, err)
	var stored profile.Profile
	require.NoError(t, decodeBody(resp, &stored))
	assert.Equal(t, p, stored)

	resp, err = s.httpClient.Do(s.newRequest(ctx, "GET", "/profile/it-user/achievements", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var achievements []profile.Achievement
	require.NoError(t, decodeBody(resp, &achievements))
	require.NotEmpty(t, achievements)
	assert.Equal(t, 1, achievements[0].Current)
}
