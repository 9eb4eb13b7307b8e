package query

import "github.com/example/itservices-cart/internal/readmodel"

type CartActivityReadModel = readmodel.CartActivityReadModel
