package vendure

const assetFields = `id preview source`

const addressFields = `fullName company streetLine1 streetLine2 city province postalCode country countryCode phoneNumber`

// checkoutOrderFragment selects everything the checkout and order history need.
const checkoutOrderFragment = `
fragment CheckoutOrder on Order {
  __typename
  id
  code
  state
  active
  createdAt
  orderPlacedAt
  currencyCode
  subTotalWithTax
  shippingWithTax
  totalWithTax
  totalQuantity
  customer { id firstName lastName emailAddress }
  shippingAddress { ` + addressFields + ` }
  billingAddress { ` + addressFields + ` }
  lines {
    id
    quantity
    unitPriceWithTax
    discountedUnitPriceWithTax
    linePriceWithTax
    featuredAsset { ` + assetFields + ` }
    productVariant {
      id
      name
      sku
      featuredAsset { ` + assetFields + ` }
      product { id name slug featuredAsset { ` + assetFields + ` } }
    }
  }
  payments { id method amount state transactionId errorMessage metadata }
  shippingLines { shippingMethod { id code name } priceWithTax }
}
`

const PingQuery = `query Ping { __typename }`

const ActiveOrderForPaymentQuery = checkoutOrderFragment + `
query ActiveOrderForPayment {
  activeOrder { ...CheckoutOrder }
}
`

const OrderByCodeQuery = checkoutOrderFragment + `
query OrderByCode($code: String!) {
  orderByCode(code: $code) { ...CheckoutOrder }
}
`

const CustomerOrdersQuery = checkoutOrderFragment + `
query CustomerOrders($options: OrderListOptions) {
  activeCustomer {
    id
    firstName
    lastName
    emailAddress
    orders(options: $options) {
      totalItems
      items { ...CheckoutOrder }
    }
  }
}
`

const EligibleShippingMethodsQuery = `
query EligibleShippingMethods {
  eligibleShippingMethods { id code name description price priceWithTax }
}
`

// TransitionOrderToStateMutation selects fromState and toState so a
// self-transition can be recognised without parsing transitionError.
const TransitionOrderToStateMutation = checkoutOrderFragment + `
mutation TransitionOrderToState($state: String!) {
  transitionOrderToState(state: $state) {
    __typename
    ... on Order { ...CheckoutOrder }
    ... on OrderStateTransitionError { errorCode message transitionError fromState toState }
  }
}
`

const AddPaymentToOrderMutation = checkoutOrderFragment + `
mutation AddPaymentToOrder($input: PaymentInput!) {
  addPaymentToOrder(input: $input) {
    __typename
    ... on Order { ...CheckoutOrder }
    ... on ErrorResult { errorCode message }
    ... on PaymentDeclinedError { paymentErrorMessage }
    ... on PaymentFailedError { paymentErrorMessage }
  }
}
`

// CreateStripePaymentIntentMutation is served by Vendure's StripePlugin and
// returns the client secret as a bare string.
const CreateStripePaymentIntentMutation = `
mutation CreateStripePaymentIntent {
  createStripePaymentIntent
}
`

// CreateMercadoPagoPaymentMutation is the older backend-delegated MercadoPago
// flow, where a Vendure plugin creates the preference and returns the redirect
// URL. Preferences are now created by this service; the document is kept for
// backends that still expose the plugin.
const CreateMercadoPagoPaymentMutation = `
mutation CreateMercadopagoPayment {
  createMercadopagoPayment { redirectUrl orderCode }
}
`

const SetCustomerForOrderMutation = `
mutation SetCustomerForOrder($input: CreateCustomerInput!) {
  setCustomerForOrder(input: $input) {
    __typename
    ... on Order { id code state customer { id firstName lastName emailAddress } }
    ... on ErrorResult { errorCode message }
  }
}
`

const SetOrderShippingAddressMutation = checkoutOrderFragment + `
mutation SetOrderShippingAddress($input: CreateAddressInput!) {
  setOrderShippingAddress(input: $input) {
    __typename
    ... on Order { ...CheckoutOrder }
    ... on ErrorResult { errorCode message }
  }
}
`

const SetOrderBillingAddressMutation = checkoutOrderFragment + `
mutation SetOrderBillingAddress($input: CreateAddressInput!) {
  setOrderBillingAddress(input: $input) {
    __typename
    ... on Order { ...CheckoutOrder }
    ... on ErrorResult { errorCode message }
  }
}
`

const SetOrderShippingMethodMutation = checkoutOrderFragment + `
mutation SetOrderShippingMethod($ids: [ID!]!) {
  setOrderShippingMethod(shippingMethodId: $ids) {
    __typename
    ... on Order { ...CheckoutOrder }
    ... on ErrorResult { errorCode message }
  }
}
`
