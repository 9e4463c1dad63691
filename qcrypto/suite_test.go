package qcrypto_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQcrypto(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "qcrypto Suite")
}
