package devtls_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/tips/internal/devtls"
)

func TestLoadOrGenerate_GeneratesAndCaches(t *testing.T) {
	dir := t.TempDir()
	cfg := devtls.Config{
		CertPath: filepath.Join(dir, "cert.pem"),
		KeyPath:  filepath.Join(dir, "key.pem"),
	}

	tlsCfg, err := devtls.LoadOrGenerate(cfg)
	require.NoError(t, err)
	require.Len(t, tlsCfg.Certificates, 1)

	_, err = os.Stat(cfg.CertPath)
	require.NoError(t, err)
	_, err = os.Stat(cfg.KeyPath)
	require.NoError(t, err)

	again, err := devtls.LoadOrGenerate(cfg)
	require.NoError(t, err)
	require.Equal(t, tlsCfg.Certificates[0].Certificate, again.Certificates[0].Certificate, "second call must reuse the cached cert, not regenerate")
}
