package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Context carries the firmware services handed to the loader at entry and the
// most recent firmware status. Every core operation receives one explicitly.
type Context struct {
	context.Context

	// ImageHandle identifies the running loader image
	ImageHandle types.Handle

	// System is the firmware system table
	System interfaces.SystemTable

	// Logger receives diagnostics. Operator-facing text goes to the console.
	Logger logrus.FieldLogger

	lastStatus types.Status
}

// NewContext creates a context for the given image and system table.
func NewContext(image types.Handle, system interfaces.SystemTable) *Context {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Context{
		Context:     context.Background(),
		ImageHandle: image,
		System:      system,
		Logger:      logger,
	}
}

// WithLogger returns a copy of the context that logs to logger.
func (c *Context) WithLogger(logger logrus.FieldLogger) *Context {
	newCtx := *c
	newCtx.Logger = logger
	return &newCtx
}

// BootServices returns the boot-time service table.
func (c *Context) BootServices() interfaces.BootServices {
	return c.System.BootServices()
}

// RuntimeServices returns the runtime service table.
func (c *Context) RuntimeServices() interfaces.RuntimeServices {
	return c.System.RuntimeServices()
}

// Record stores status as the most recent firmware result and returns it
// as an error, nil when it is not an error.
func (c *Context) Record(status types.Status, operation string) error {
	c.lastStatus = status
	if !status.IsError() {
		return nil
	}
	c.Logger.WithFields(logrus.Fields{
		"operation": operation,
		"status":    status.String(),
	}).Debug("firmware call failed")
	return efierrors.FromStatus(status, operation)
}

// RecordError stores the status carried by err as the most recent result.
func (c *Context) RecordError(err error) error {
	if err != nil {
		c.lastStatus = efierrors.StatusOf(err)
	}
	return err
}

// LastStatus returns the most recent firmware status recorded on this context.
func (c *Context) LastStatus() types.Status {
	return c.lastStatus
}

// Printf writes formatted text to the firmware console.
func (c *Context) Printf(format string, args ...interface{}) {
	c.System.ConOut().OutputString(fmt.Sprintf(format, args...))
}

// Log outputs a debug message
func (c *Context) Log(message string) {
	c.Logger.Debug(message)
}
