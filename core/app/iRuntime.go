package app

import (
	reg "github.com/jxo-me/ddnsd/core/registry"
	"github.com/jxo-me/ddnsd/core/service"
)

type IRuntime interface {
	DDNSRegistry() reg.IRegistry[service.IDDNSService]
}
