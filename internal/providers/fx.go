package providers

import (
	"github.com/smallbiznis/translog/internal/providers/email"
	"github.com/smallbiznis/translog/internal/providers/pdf"
	"github.com/smallbiznis/translog/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	storage.Module,
)
