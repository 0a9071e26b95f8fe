package registry

import "github.com/jxo-me/ddnsd/core/service"

type DDNSRegistry struct {
	registry[service.IDDNSService]
}
