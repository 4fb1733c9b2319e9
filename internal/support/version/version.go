// Package version — сведения о сборке. Version переопределяется при сборке:
//
//	go build -ldflags "-X telegram-exportbot/internal/support/version.Version=v1.2.3"
package version

// Name — имя приложения в логах и DeviceConfig.
const Name = "telegram-exportbot"

// Version — версия сборки.
var Version = "dev"
