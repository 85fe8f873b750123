package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatInvoiceNumber(t *testing.T) {
	out, err := FormatInvoiceNumber(DefaultInvoiceNumberTemplate, "1234", 1)
	assert.NoError(t, err)
	assert.Equal(t, "INV-1234-01", out)

	out, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, "1234", 12)
	assert.NoError(t, err)
	assert.Equal(t, "INV-1234-12", out)

	// Padding keeps width once the sequence outgrows it.
	out, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, "1234", 103)
	assert.NoError(t, err)
	assert.Equal(t, "INV-1234-103", out)

	out, err = FormatInvoiceNumber("JOB{JOB}/{SEQ}", "77", 9)
	assert.NoError(t, err)
	assert.Equal(t, "JOB77/9", out)
}

func TestFormatInvoiceNumberRejectsBadInput(t *testing.T) {
	_, err := FormatInvoiceNumber("", "1", 1)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, "", 1)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, "1", 0)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber("INV-{NOPE}", "1", 1)
	assert.Error(t, err)
}
