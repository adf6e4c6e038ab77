package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		logger, err := newLogger("info", "json")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("Text", func(t *testing.T) {
		logger, err := newLogger("error", "text")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("DefaultsToText", func(t *testing.T) {
		logger, err := newLogger("info", "")
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		logger, err := newLogger("info", "gofmt")
		require.Error(t, err)
		require.Equal(t, "log format is not one of the supported values (json, text): gofmt", err.Error())
		require.Nil(t, logger)
	})

	t.Run("UnknownLevel", func(t *testing.T) {
		logger, err := newLogger("deafening", "text")
		require.Error(t, err)
		require.Nil(t, logger)
	})
}
