package memsys_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axpsim/memsys"
)

var _ = Describe("Config", func() {
	It("should validate the defaults", func() {
		Expect(memsys.DefaultConfig().Validate()).To(Succeed())
	})

	It("should round-trip through a JSON file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "memsys.json")

		config := memsys.DefaultConfig()
		config.CacheLineSize = 128
		config.PageSize = 4096
		config.EfficiencyTarget = 0.75
		config.PrefetchDepth = 4
		config.PrefetchDistance = 256
		config.EnableCoherency = false
		config.MaxCPUs = 2
		Expect(config.SaveConfig(path)).To(Succeed())

		loaded, err := memsys.LoadConfig(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded).To(Equal(config))
	})

	It("should keep defaults for fields a file omits", func() {
		path := filepath.Join(GinkgoT().TempDir(), "memsys.json")
		Expect(os.WriteFile(path, []byte(`{"page_size": 4096}`), 0644)).To(Succeed())

		loaded, err := memsys.LoadConfig(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded.PageSize).To(Equal(4096))
		Expect(loaded.CacheLineSize).To(Equal(64))
		Expect(loaded.MaxCPUs).To(Equal(8))
	})

	It("should fail to load a missing file", func() {
		_, err := memsys.LoadConfig(filepath.Join(GinkgoT().TempDir(), "absent.json"))
		Expect(err).To(HaveOccurred())
	})

	It("should reject bad values", func() {
		mutations := []func(*memsys.Config){
			func(c *memsys.Config) { c.CacheLineSize = 0 },
			func(c *memsys.Config) { c.PageSize = 1024 },
			func(c *memsys.Config) { c.EfficiencyTarget = 1.5 },
			func(c *memsys.Config) { c.EfficiencyTarget = -0.1 },
			func(c *memsys.Config) { c.PrefetchDepth = -1 },
			func(c *memsys.Config) { c.PrefetchDistance = -1 },
			func(c *memsys.Config) { c.MaxCPUs = 0 },
		}
		for _, mutate := range mutations {
			config := memsys.DefaultConfig()
			mutate(config)
			Expect(config.Validate()).To(HaveOccurred())
		}
	})

	It("should clone without sharing state", func() {
		config := memsys.DefaultConfig()
		clone := config.Clone()
		clone.PageSize = 4096
		Expect(config.PageSize).To(Equal(8192))
	})
})
