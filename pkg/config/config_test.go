package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Rules.DiaryEditWindow)
	assert.Equal(t, 7, cfg.Rules.DiaryEntriesPerWeek)
	assert.Equal(t, 5, cfg.Rules.ProjectMaxMembers)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Cache.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PROJECT_MAX_MEMBERS", 0)
	v.Set("DIARY_EDIT_WINDOW", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://portal.example.edu, ,http://localhost:5173 ")

	cfg := fromViper(v)
	assert.Equal(t, 5, cfg.Rules.ProjectMaxMembers)
	assert.Equal(t, 7*24*time.Hour, cfg.Rules.DiaryEditWindow)
	assert.Equal(t, []string{"https://portal.example.edu", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}
