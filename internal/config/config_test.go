package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, string(tidy.DuplicateError), c.SpreadDuplicates)
	require.Equal(t, "sqlite", c.DBDriver)
	require.Equal(t, []string{"NA"}, c.MissingTokens)
	require.Equal(t, filepath.Join(home, ".tidyloom", "recipes"), c.RecipesDir)

	opt := c.SourceOptions()
	require.Equal(t, rune(0), opt.Delimiter)
	require.True(t, opt.Parse.IsMissingToken("NA"))
}

func TestLoadEnvAndDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("TIDYLOOM_DB_PASSWORD=from-dotenv\nTIDYLOOM_DB_USER=analyst\n"), 0o600))
	t.Setenv("TIDYLOOM_DB_USER", "from-env")
	t.Setenv("TIDYLOOM_SEPARATE_FILL", "right")
	t.Setenv("TIDYLOOM_DELIMITER", ";")
	// godotenv sets variables the test process does not yet own.
	t.Cleanup(func() { _ = os.Unsetenv("TIDYLOOM_DB_PASSWORD") })

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", c.DBPassword)
	require.Equal(t, "from-env", c.DBUser)
	require.Equal(t, "right", c.SeparateFill)
	require.Equal(t, ';', c.SourceOptions().Delimiter)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("db_driver", "PostgreSQL"))
	require.NoError(t, c.Set("db_port", "5433"))
	require.NoError(t, c.Set("missing_tokens", "NA, -, n/a"))
	require.NoError(t, c.Set("spread_duplicates", "last"))
	require.NoError(t, c.Set("delimiter", "tab"))
	require.NoError(t, Save(c, path))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", back.DBDriver)
	require.Equal(t, 5433, back.DBPort)
	require.Equal(t, []string{"NA", "-", "n/a"}, back.MissingTokens)
	require.Equal(t, "last", back.SpreadDuplicates)
	require.Equal(t, '\t', back.SourceOptions().Delimiter)
	require.Equal(t, "postgres", back.Conn().Driver)
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	require.ErrorIs(t, c.Set("nope", "1"), ErrUnknownKey)
	require.ErrorIs(t, c.Set("separate_extra", "explode"), tidy.ErrInvalidOption)
	require.Error(t, c.Set("db_port", "99999"))
	require.Error(t, c.Set("delimiter", ";;"))
	require.Error(t, c.Set("db_driver", "oracle"))
}

func TestLoadRejectsBadPolicyFromFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spread_duplicates: sum\n"), 0o644))
	_, err := Load(path)
	require.ErrorIs(t, err, tidy.ErrInvalidOption)
}

func TestGetMasksPassword(t *testing.T) {
	c := &Global{DBPassword: "supersecret"}
	got, err := c.Get("db_password")
	require.NoError(t, err)
	require.Equal(t, "sup****ret", got)
	for _, k := range Keys {
		_, err := c.Get(k)
		require.NoError(t, err, k)
	}
}
