package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", c.Port)
	assert.Equal(t, "gravecare", c.MongoDB)
	assert.Equal(t, 24*time.Hour, c.JWTTTL)
	assert.Equal(t, TransportSMTP, c.Mail.Transport)
	assert.Equal(t, "smtp.gmail.com", c.Mail.SMTPHost)
	assert.Equal(t, 465, c.Mail.SMTPPort)
	assert.Equal(t, NotifyPool, c.Notify.Mode)
	assert.Equal(t, 10*time.Second, c.Notify.Timeout)
	assert.Equal(t, []string{"*"}, c.CORS)
}

func TestLoadRequiresSecretAndMongo(t *testing.T) {
	setRequired(t)
	os.Unsetenv("MONGO_URI")
	_, err := Load()
	assert.Error(t, err)

	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadMailAddressesFallBackToSender(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_USER", "ops@example.com")
	t.Setenv("SMTP_PASS", "app-password")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", c.Mail.From)
	assert.Equal(t, "ops@example.com", c.Mail.To)

	t.Setenv("TO_EMAIL", "desk@example.com")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "desk@example.com", c.Mail.To)
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTIFY_MODE", "carrier-pigeon")
	_, err := Load()
	assert.ErrorContains(t, err, "NOTIFY_MODE")

	t.Setenv("NOTIFY_MODE", "INLINE")
	t.Setenv("MAIL_TRANSPORT", "fax")
	_, err = Load()
	assert.ErrorContains(t, err, "MAIL_TRANSPORT")
}

func TestLoadNotifierSkipsServerSettings(t *testing.T) {
	os.Unsetenv("MONGO_URI")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("SMTP_USER", "ops@example.com")

	c, err := LoadNotifier()
	require.NoError(t, err)
	assert.Equal(t, "order.notifications", c.Notify.AMQPQueue)
	assert.Equal(t, "ops@example.com", c.Mail.To)
}
