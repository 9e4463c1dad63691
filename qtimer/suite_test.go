package qtimer_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQtimer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "qtimer Suite")
}
