package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/glossa/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.ConfigFromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := "[server]\nlisten = \":6000\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, config.FileName), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("server.listen")).To(Equal(":6000"))
		Expect(v.GetString("server.output_dir")).To(Equal(config.NewDefaultConfig().Server.OutputDir))
	})

	It("env vars take precedence over config file values", func() {
		data := "[fallback]\nmodel = \"from-file\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, config.FileName), []byte(data), 0o600)).To(Succeed())
		GinkgoT().Setenv("GLOSSA_FALLBACK_MODEL", "from-env")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.ConfigFromViper(v).Fallback.Model).To(Equal("from-env"))
	})
})

var _ = Describe("Flag registry", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds a set flag over env and file", func() {
		GinkgoT().Setenv("GLOSSA_SERVER_LISTEN", ":1111")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagListen})
		Expect(v.GetString("server.listen")).To(Equal(":7777"))
	})

	It("falls through to config when the flag is not set", func() {
		data := "[client]\nrelay_target = \"http://relay.test:5555\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, config.FileName), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &target)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagRelayTarget})

		Expect(v.GetString("client.relay_target")).To(Equal("http://relay.test:5555"))
	})

	It("takes name, shorthand, default, and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var encoding string
		config.AddStringFlag(cmd, config.Flags, config.FlagEncoding, &encoding)

		f := cmd.Flags().Lookup("encoding")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("e"))
		Expect(f.DefValue).To(Equal("utf-8"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagEncoding].Description))
	})

	It("never binds per-invocation flags", func() {
		GinkgoT().Setenv("GLOSSA_FALLBACK_MODEL", "from-env")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var model string
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
		Expect(cmd.Flags().Set("model", "from-flag")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagModel, "nonexistent"})

		Expect(v.GetString("fallback.model")).To(Equal("from-env"))
		Expect(model).To(Equal("from-flag"))
	})
})
