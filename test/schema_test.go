package test

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestSchemaMigrated() {
	t := s.T()

	var version int
	var dirty bool
	require.NoError(t, s.DB.QueryRow(`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty))
	assert.Equal(t, 1, version)
	assert.False(t, dirty)

	var table string
	require.NoError(t, s.DB.QueryRow(`SELECT to_regclass('public.analysis_session')::text`).Scan(&table))
	assert.Equal(t, "analysis_session", table)
}
