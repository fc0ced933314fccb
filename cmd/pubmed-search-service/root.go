package main

import (
	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search-service/internal/config"
)

var credentialFlags config.Overrides

var rootCmd = &cobra.Command{
	Use:           "pubmed-search-service",
	Short:         "PubMed search service over the NCBI E-utilities API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&credentialFlags.APIKey, "api-key", "",
		"NCBI API key (overrides credential file and NCBI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&credentialFlags.Email, "email", "",
		"contact email sent with every upstream request")
	rootCmd.PersistentFlags().StringVar(&credentialFlags.CredentialFile, "credential-file", "",
		"path to a JSON credential file holding api_key and email")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(setupCmd)
}
