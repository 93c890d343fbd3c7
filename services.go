package main

import (
	"sync"

	"github.com/dan13ram/yusd-settlement/api"
	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/intake"
	"github.com/dan13ram/yusd-settlement/models"
)

func CreateService(
	wg *sync.WaitGroup,
	serviceName string,
	serviceHealthMap map[string]models.ServiceHealth,
	factory ServiceFactory,
) app.Service {
	serviceHealth, ok := serviceHealthMap[serviceName]
	if ok && factory.CreateServiceWithLastHealth != nil {
		return factory.CreateServiceWithLastHealth(wg, serviceHealth)
	}
	return factory.CreateService(wg)
}

type ServiceFactory struct {
	CreateService               func(*sync.WaitGroup) app.Service
	CreateServiceWithLastHealth func(*sync.WaitGroup, models.ServiceHealth) app.Service
}

// GetServiceFactories lists the services started next to the health check,
// in start order.
func GetServiceFactories(deps *Runtime) []namedFactory {
	return []namedFactory{
		{
			name: intake.OrderExecutorName,
			factory: ServiceFactory{
				CreateService: func(wg *sync.WaitGroup) app.Service {
					return intake.NewOrderExecutorService(deps.Engine, wg)
				},
				CreateServiceWithLastHealth: func(wg *sync.WaitGroup, lastHealth models.ServiceHealth) app.Service {
					return intake.NewOrderExecutorServiceWithLastHealth(deps.Engine, wg, lastHealth)
				},
			},
		},
		{
			name: api.APIServiceName,
			factory: ServiceFactory{
				CreateService: func(wg *sync.WaitGroup) app.Service {
					return api.NewAPIService(deps.APIOptions(), wg)
				},
			},
		},
	}
}

type namedFactory struct {
	name    string
	factory ServiceFactory
}
