package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-registry/config"
	"user-registry/models"
)

func runValidateCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"validate"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := runValidateCmd(t,
		"--id", "12345678z",
		"--first-name", "Ana",
		"--last-name", "García López",
		"--birth-date", "1995-03-15")
	require.NoError(t, err)
	assert.Equal(t, "ok: 12345678Z Ana García López 15/03/1995\n", out)

	out, err = runValidateCmd(t,
		"--id", "BADID",
		"--first-name", "Ana",
		"--last-name", "García López",
		"--birth-date", "2021-02-31")
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, out, "national_id: invalid\n")
	assert.Contains(t, out, "birth_date: invalid\n")
	assert.NotContains(t, out, "first_name")
}

func TestSeedUsers(t *testing.T) {
	cfg := config.RegistryConfig{
		SeedDefaults: true,
		Seed: []config.SeedUser{
			{NationalID: "12345678Z", FirstName: "Ana", LastName: "García López", BirthDate: "1995-03-15"},
		},
	}

	seed := seedUsers(cfg)
	require.Len(t, seed, 2)
	assert.Equal(t, "24470848K", seed[0].NationalID)
	assert.Equal(t, "15/03/1995", seed[1].BirthDate)

	assert.Empty(t, seedUsers(config.RegistryConfig{}))
}

func TestRegistryPolicy(t *testing.T) {
	p := registryPolicy(config.RegistryConfig{StrictDates: false, VerifyChecksum: true})
	assert.False(t, p.StrictDates)
	assert.True(t, p.VerifyChecksum)
}
