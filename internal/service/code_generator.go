package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode"
)

const (
	codeDigits = 6
	codeSpace  = 1000000
)

// CodeGenerator produce códigos numéricos de ancho fijo.
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCodeGenerator struct {
	reader io.Reader
}

// NewCodeGenerator usa crypto/rand como fuente.
func NewCodeGenerator() CodeGenerator {
	return &randomCodeGenerator{reader: rand.Reader}
}

func (g *randomCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(g.reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return formatCode(n.Int64()), nil
}

func formatCode(n int64) string {
	return fmt.Sprintf("%0*d", codeDigits, n)
}

func isValidCode(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}
