package platformscmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	platformscmder "github.com/papercomputeco/glossa/cmd/glossa/platforms"
	"github.com/papercomputeco/glossa/pkg/platform"
)

var _ = Describe("platforms command", func() {
	var out *bytes.Buffer

	BeforeEach(func() {
		out = &bytes.Buffer{}
	})

	It("lists every preset with its env var and defaults", func() {
		cmd := platformscmder.NewPlatformsCmd()
		cmd.SetOut(out)
		cmd.SetArgs(nil)
		Expect(cmd.Execute()).To(Succeed())

		for _, name := range platform.Names() {
			Expect(out.String()).To(ContainSubstring(name))
		}
		Expect(out.String()).To(ContainSubstring("DEEPSEEK_API_KEY"))
		Expect(out.String()).To(ContainSubstring("OLLAMA_API_KEY (optional)"))
		Expect(out.String()).To(ContainSubstring("http://localhost:11434/v1"))
	})

	It("prints JSON with --json", func() {
		cmd := platformscmder.NewPlatformsCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--json"})
		Expect(cmd.Execute()).To(Succeed())

		var presets []platform.Preset
		Expect(json.Unmarshal(out.Bytes(), &presets)).To(Succeed())
		Expect(presets).To(HaveLen(len(platform.Names())))
		Expect(presets[0].Name).To(Equal(platform.SiliconFlow))
	})

	It("rejects arguments", func() {
		cmd := platformscmder.NewPlatformsCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs([]string{"extra"})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})
