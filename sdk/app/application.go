package app

import (
	"github.com/jxo-me/ddnsd/core/app"
	reg "github.com/jxo-me/ddnsd/core/registry"
	"github.com/jxo-me/ddnsd/core/service"
	"github.com/jxo-me/ddnsd/sdk/registry"
)

var (
	Runtime app.IRuntime = NewConfig()
)

type Application struct {
	ddnsReg reg.IRegistry[service.IDDNSService]
}

func NewConfig() *Application {
	a := Application{
		ddnsReg: new(registry.DDNSRegistry),
	}

	return &a
}

func (a *Application) DDNSRegistry() reg.IRegistry[service.IDDNSService] {
	return a.ddnsReg
}
