package qerr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQerr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "qerr Suite")
}
