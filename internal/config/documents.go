package config

import (
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DocumentCategoryTrip          = "trip"
	DocumentCategoryPassportScan  = "passport_scan"
	defaultDocumentMaxSizeBytes   = 10 * 1024 * 1024
	defaultTripDocumentFolder     = "application-documents"
	defaultPassportDocumentFolder = "passport-scans"
)

// DocumentPolicy controls which uploads are accepted and where they are stored.
type DocumentPolicy struct {
	AllowedMediaTypes []string          `mapstructure:"allowedMediaTypes"`
	MaxSizeBytes      int64             `mapstructure:"maxSizeBytes"`
	Folders           map[string]string `mapstructure:"folders"`
}

func DefaultDocumentPolicy() DocumentPolicy {
	return DocumentPolicy{
		AllowedMediaTypes: []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"},
		MaxSizeBytes:      defaultDocumentMaxSizeBytes,
		Folders: map[string]string{
			DocumentCategoryTrip:         defaultTripDocumentFolder,
			DocumentCategoryPassportScan: defaultPassportDocumentFolder,
		},
	}
}

// Allows reports whether the media type is on the allow-list.
func (p DocumentPolicy) Allows(mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, allowed := range p.AllowedMediaTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), mediaType) {
			return true
		}
	}
	return false
}

// Folder resolves the storage folder of a document category.
func (p DocumentPolicy) Folder(category string) string {
	if folder := strings.Trim(strings.TrimSpace(p.Folders[category]), "/"); folder != "" {
		return folder
	}
	return strings.Trim(strings.TrimSpace(category), "/")
}

// DocumentPolicyProvider exposes the current policy.
type DocumentPolicyProvider interface {
	Get() DocumentPolicy
}

type DocumentPolicyHolder struct {
	current atomic.Value // holds DocumentPolicy
}

// StaticDocumentPolicy wraps a fixed policy, mainly for tests.
func StaticDocumentPolicy(policy DocumentPolicy) *DocumentPolicyHolder {
	holder := &DocumentPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewDocumentPolicyHolder(cfg Config) (*DocumentPolicyHolder, error) {
	v := viper.New()

	if path := cfg.Documents.PolicyPath; path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("documents")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/translog")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TRANSLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDocumentPolicy()
	v.SetDefault("documents.allowedMediaTypes", defaults.AllowedMediaTypes)
	v.SetDefault("documents.maxSizeBytes", defaults.MaxSizeBytes)
	v.SetDefault("documents.folders", defaults.Folders)

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		loaded = false
	}

	policy, err := decodeDocumentPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := StaticDocumentPolicy(policy)
	if !loaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeDocumentPolicy(v)
		if err != nil {
			log.Printf("[document-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[document-policy] reloaded from %s", filepath.Base(e.Name))
	})

	return holder, nil
}

func (h *DocumentPolicyHolder) Get() DocumentPolicy {
	return h.current.Load().(DocumentPolicy)
}

func decodeDocumentPolicy(v *viper.Viper) (DocumentPolicy, error) {
	var policy DocumentPolicy
	if err := v.UnmarshalKey("documents", &policy); err != nil {
		return DocumentPolicy{}, err
	}
	if err := validateDocumentPolicy(policy); err != nil {
		return DocumentPolicy{}, err
	}
	return policy, nil
}

func validateDocumentPolicy(policy DocumentPolicy) error {
	if len(policy.AllowedMediaTypes) == 0 {
		return errors.New("documents.allowedMediaTypes cannot be empty")
	}
	if policy.MaxSizeBytes <= 0 {
		return errors.New("documents.maxSizeBytes must be positive")
	}
	return nil
}
