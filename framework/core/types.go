package core

// ComponentType тип компонента
type ComponentType string

const (
	ComponentTypeModule    ComponentType = "module"
	ComponentTypeAdapter   ComponentType = "adapter"
	ComponentTypeTransport ComponentType = "transport"
)
