package pathmgr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPathmgr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "pathmgr Suite")
}
