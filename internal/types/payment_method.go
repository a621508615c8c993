package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PaymentMethod is the top-level payment method category.
type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodWallet         PaymentMethod = "wallet"
	MethodBankDebit      PaymentMethod = "bank_debit"
	MethodBankRedirect   PaymentMethod = "bank_redirect"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodPayLater       PaymentMethod = "pay_later"
	MethodCardRedirect   PaymentMethod = "card_redirect"
	MethodCrypto         PaymentMethod = "crypto"
	MethodMandatePayment PaymentMethod = "mandate_payment"
	MethodReward         PaymentMethod = "reward"
	MethodVoucher        PaymentMethod = "voucher"
	MethodGiftCard       PaymentMethod = "gift_card"
	MethodUpi            PaymentMethod = "upi"
)

// PaymentMethodData is a closed sum type: only the variants declared in this
// file implement it. Connectors switch over the concrete types.
type PaymentMethodData interface {
	PaymentMethod() PaymentMethod
	PaymentMethodType() string
	isPaymentMethodData()
}

type Card struct {
	Number     Secret `json:"card_number"`
	ExpMonth   Secret `json:"card_exp_month"`
	ExpYear    Secret `json:"card_exp_year"`
	HolderName Secret `json:"card_holder_name,omitempty"`
	CVC        Secret `json:"card_cvc"`
	Network    string `json:"card_network,omitempty"`
	Issuer     string `json:"card_issuer,omitempty"`
}

// ExpYear4 returns the expiry year in four-digit form.
func (c Card) ExpYear4() string {
	y := c.ExpYear.Expose()
	if len(y) == 2 {
		return "20" + y
	}
	return y
}

// WalletKind enumerates wallet sub-variants.
type WalletKind string

const (
	WalletAliPayQr               WalletKind = "ali_pay_qr"
	WalletAliPayRedirect         WalletKind = "ali_pay_redirect"
	WalletAliPayHkRedirect       WalletKind = "ali_pay_hk_redirect"
	WalletMomoRedirect           WalletKind = "momo_redirect"
	WalletKakaoPayRedirect       WalletKind = "kakao_pay_redirect"
	WalletGoPayRedirect          WalletKind = "go_pay_redirect"
	WalletGcashRedirect          WalletKind = "gcash_redirect"
	WalletApplePay               WalletKind = "apple_pay"
	WalletApplePayRedirect       WalletKind = "apple_pay_redirect"
	WalletApplePayThirdPartySdk  WalletKind = "apple_pay_third_party_sdk"
	WalletDanaRedirect           WalletKind = "dana_redirect"
	WalletGooglePay              WalletKind = "google_pay"
	WalletGooglePayRedirect      WalletKind = "google_pay_redirect"
	WalletGooglePayThirdPartySdk WalletKind = "google_pay_third_party_sdk"
	WalletMbWayRedirect          WalletKind = "mb_way_redirect"
	WalletMobilePayRedirect      WalletKind = "mobile_pay_redirect"
	WalletPaypalRedirect         WalletKind = "paypal_redirect"
	WalletPaypalSdk              WalletKind = "paypal_sdk"
	WalletSamsungPay             WalletKind = "samsung_pay"
	WalletTwintRedirect          WalletKind = "twint_redirect"
	WalletVippsRedirect          WalletKind = "vipps_redirect"
	WalletTouchNGoRedirect       WalletKind = "touch_n_go_redirect"
	WalletWeChatPayRedirect      WalletKind = "we_chat_pay_redirect"
	WalletWeChatPayQr            WalletKind = "we_chat_pay_qr"
	WalletCashappQr              WalletKind = "cashapp_qr"
	WalletSwishQr                WalletKind = "swish_qr"
)

var AllWalletKinds = []WalletKind{
	WalletAliPayQr, WalletAliPayRedirect, WalletAliPayHkRedirect, WalletMomoRedirect,
	WalletKakaoPayRedirect, WalletGoPayRedirect, WalletGcashRedirect, WalletApplePay,
	WalletApplePayRedirect, WalletApplePayThirdPartySdk, WalletDanaRedirect, WalletGooglePay,
	WalletGooglePayRedirect, WalletGooglePayThirdPartySdk, WalletMbWayRedirect, WalletMobilePayRedirect,
	WalletPaypalRedirect, WalletPaypalSdk, WalletSamsungPay, WalletTwintRedirect,
	WalletVippsRedirect, WalletTouchNGoRedirect, WalletWeChatPayRedirect, WalletWeChatPayQr,
	WalletCashappQr, WalletSwishQr,
}

type GooglePayWalletData struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CardNetwork string `json:"card_network,omitempty"`
	Token       string `json:"token"`
}

type ApplePayWalletData struct {
	PaymentData string `json:"payment_data"`
	DisplayName string `json:"display_name,omitempty"`
	Network     string `json:"network,omitempty"`
}

type Wallet struct {
	Kind      WalletKind           `json:"type"`
	GooglePay *GooglePayWalletData `json:"google_pay,omitempty"`
	ApplePay  *ApplePayWalletData  `json:"apple_pay,omitempty"`
}

type BankDebitKind string

const (
	BankDebitAch  BankDebitKind = "ach"
	BankDebitSepa BankDebitKind = "sepa"
	BankDebitBecs BankDebitKind = "becs"
	BankDebitBacs BankDebitKind = "bacs"
)

var AllBankDebitKinds = []BankDebitKind{BankDebitAch, BankDebitSepa, BankDebitBecs, BankDebitBacs}

type BankDebit struct {
	Kind              BankDebitKind `json:"type"`
	AccountNumber     Secret        `json:"account_number,omitempty"`
	RoutingNumber     Secret        `json:"routing_number,omitempty"`
	IBAN              Secret        `json:"iban,omitempty"`
	SortCode          Secret        `json:"sort_code,omitempty"`
	BSBNumber         Secret        `json:"bsb_number,omitempty"`
	AccountHolderName Secret        `json:"account_holder_name,omitempty"`
}

type BankRedirectKind string

const (
	BankRedirectBancontactCard             BankRedirectKind = "bancontact_card"
	BankRedirectBizum                      BankRedirectKind = "bizum"
	BankRedirectBlik                       BankRedirectKind = "blik"
	BankRedirectEps                        BankRedirectKind = "eps"
	BankRedirectGiropay                    BankRedirectKind = "giropay"
	BankRedirectIdeal                      BankRedirectKind = "ideal"
	BankRedirectInterac                    BankRedirectKind = "interac"
	BankRedirectOnlineBankingCzechRepublic BankRedirectKind = "online_banking_czech_republic"
	BankRedirectOnlineBankingFinland       BankRedirectKind = "online_banking_finland"
	BankRedirectOnlineBankingPoland        BankRedirectKind = "online_banking_poland"
	BankRedirectOnlineBankingSlovakia      BankRedirectKind = "online_banking_slovakia"
	BankRedirectOpenBankingUk              BankRedirectKind = "open_banking_uk"
	BankRedirectPrzelewy24                 BankRedirectKind = "przelewy24"
	BankRedirectSofort                     BankRedirectKind = "sofort"
	BankRedirectTrustly                    BankRedirectKind = "trustly"
	BankRedirectOnlineBankingFpx           BankRedirectKind = "online_banking_fpx"
	BankRedirectOnlineBankingThailand      BankRedirectKind = "online_banking_thailand"
)

var AllBankRedirectKinds = []BankRedirectKind{
	BankRedirectBancontactCard, BankRedirectBizum, BankRedirectBlik, BankRedirectEps,
	BankRedirectGiropay, BankRedirectIdeal, BankRedirectInterac, BankRedirectOnlineBankingCzechRepublic,
	BankRedirectOnlineBankingFinland, BankRedirectOnlineBankingPoland, BankRedirectOnlineBankingSlovakia,
	BankRedirectOpenBankingUk, BankRedirectPrzelewy24, BankRedirectSofort, BankRedirectTrustly,
	BankRedirectOnlineBankingFpx, BankRedirectOnlineBankingThailand,
}

type BankRedirect struct {
	Kind     BankRedirectKind `json:"type"`
	BankName string           `json:"bank_name,omitempty"`
	Country  string           `json:"country,omitempty"`
	BlikCode string           `json:"blik_code,omitempty"`
	Issuer   string           `json:"issuer,omitempty"`
}

type BankTransferKind string

const (
	BankTransferAch        BankTransferKind = "ach"
	BankTransferSepa       BankTransferKind = "sepa"
	BankTransferBacs       BankTransferKind = "bacs"
	BankTransferMultibanco BankTransferKind = "multibanco"
	BankTransferPermata    BankTransferKind = "permata"
	BankTransferBca        BankTransferKind = "bca"
	BankTransferBniVa      BankTransferKind = "bni_va"
	BankTransferBriVa      BankTransferKind = "bri_va"
	BankTransferCimbVa     BankTransferKind = "cimb_va"
	BankTransferDanamonVa  BankTransferKind = "danamon_va"
	BankTransferMandiriVa  BankTransferKind = "mandiri_va"
	BankTransferPix        BankTransferKind = "pix"
	BankTransferPse        BankTransferKind = "pse"
)

var AllBankTransferKinds = []BankTransferKind{
	BankTransferAch, BankTransferSepa, BankTransferBacs, BankTransferMultibanco, BankTransferPermata,
	BankTransferBca, BankTransferBniVa, BankTransferBriVa, BankTransferCimbVa, BankTransferDanamonVa,
	BankTransferMandiriVa, BankTransferPix, BankTransferPse,
}

type BankTransfer struct {
	Kind BankTransferKind `json:"type"`
}

type PayLaterKind string

const (
	PayLaterKlarnaRedirect           PayLaterKind = "klarna_redirect"
	PayLaterKlarnaSdk                PayLaterKind = "klarna_sdk"
	PayLaterAffirmRedirect           PayLaterKind = "affirm_redirect"
	PayLaterAfterpayClearpayRedirect PayLaterKind = "afterpay_clearpay_redirect"
	PayLaterPayBrightRedirect        PayLaterKind = "pay_bright_redirect"
	PayLaterWalleyRedirect           PayLaterKind = "walley_redirect"
	PayLaterAlmaRedirect             PayLaterKind = "alma_redirect"
	PayLaterAtomeRedirect            PayLaterKind = "atome_redirect"
)

var AllPayLaterKinds = []PayLaterKind{
	PayLaterKlarnaRedirect, PayLaterKlarnaSdk, PayLaterAffirmRedirect, PayLaterAfterpayClearpayRedirect,
	PayLaterPayBrightRedirect, PayLaterWalleyRedirect, PayLaterAlmaRedirect, PayLaterAtomeRedirect,
}

type PayLater struct {
	Kind         PayLaterKind `json:"type"`
	BillingEmail string       `json:"billing_email,omitempty"`
}

type CardRedirectKind string

const (
	CardRedirectKnet    CardRedirectKind = "knet"
	CardRedirectBenefit CardRedirectKind = "benefit"
	CardRedirectMomoAtm CardRedirectKind = "momo_atm"
)

var AllCardRedirectKinds = []CardRedirectKind{CardRedirectKnet, CardRedirectBenefit, CardRedirectMomoAtm}

type CardRedirect struct {
	Kind CardRedirectKind `json:"type"`
}

type Crypto struct {
	PayCurrency string `json:"pay_currency,omitempty"`
	Network     string `json:"network,omitempty"`
}

// MandatePayment charges a previously stored mandate; the connector mandate
// reference travels on the authorize request, not here.
type MandatePayment struct{}

type Reward struct{}

type VoucherKind string

const (
	VoucherBoleto       VoucherKind = "boleto"
	VoucherEfecty       VoucherKind = "efecty"
	VoucherPagoEfectivo VoucherKind = "pago_efectivo"
	VoucherRedCompra    VoucherKind = "red_compra"
	VoucherRedPagos     VoucherKind = "red_pagos"
	VoucherAlfamart     VoucherKind = "alfamart"
	VoucherIndomaret    VoucherKind = "indomaret"
	VoucherOxxo         VoucherKind = "oxxo"
	VoucherSevenEleven  VoucherKind = "seven_eleven"
	VoucherLawson       VoucherKind = "lawson"
	VoucherMiniStop     VoucherKind = "mini_stop"
	VoucherFamilyMart   VoucherKind = "family_mart"
	VoucherSeicomart    VoucherKind = "seicomart"
	VoucherPayEasy      VoucherKind = "pay_easy"
)

var AllVoucherKinds = []VoucherKind{
	VoucherBoleto, VoucherEfecty, VoucherPagoEfectivo, VoucherRedCompra, VoucherRedPagos,
	VoucherAlfamart, VoucherIndomaret, VoucherOxxo, VoucherSevenEleven, VoucherLawson,
	VoucherMiniStop, VoucherFamilyMart, VoucherSeicomart, VoucherPayEasy,
}

type Voucher struct {
	Kind VoucherKind `json:"type"`
}

type GiftCardKind string

const (
	GiftCardGivex       GiftCardKind = "givex"
	GiftCardPaySafeCard GiftCardKind = "pay_safe_card"
)

var AllGiftCardKinds = []GiftCardKind{GiftCardGivex, GiftCardPaySafeCard}

type GiftCard struct {
	Kind   GiftCardKind `json:"type"`
	Number Secret       `json:"number,omitempty"`
	CVC    Secret       `json:"cvc,omitempty"`
}

type Upi struct {
	VpaID Secret `json:"vpa_id,omitempty"`
}

func (Card) PaymentMethod() PaymentMethod           { return MethodCard }
func (Wallet) PaymentMethod() PaymentMethod         { return MethodWallet }
func (BankDebit) PaymentMethod() PaymentMethod      { return MethodBankDebit }
func (BankRedirect) PaymentMethod() PaymentMethod   { return MethodBankRedirect }
func (BankTransfer) PaymentMethod() PaymentMethod   { return MethodBankTransfer }
func (PayLater) PaymentMethod() PaymentMethod       { return MethodPayLater }
func (CardRedirect) PaymentMethod() PaymentMethod   { return MethodCardRedirect }
func (Crypto) PaymentMethod() PaymentMethod         { return MethodCrypto }
func (MandatePayment) PaymentMethod() PaymentMethod { return MethodMandatePayment }
func (Reward) PaymentMethod() PaymentMethod         { return MethodReward }
func (Voucher) PaymentMethod() PaymentMethod        { return MethodVoucher }
func (GiftCard) PaymentMethod() PaymentMethod       { return MethodGiftCard }
func (Upi) PaymentMethod() PaymentMethod            { return MethodUpi }

func (c Card) PaymentMethodType() string {
	if c.Network != "" {
		return c.Network
	}
	return "credit"
}
func (w Wallet) PaymentMethodType() string       { return string(w.Kind) }
func (b BankDebit) PaymentMethodType() string    { return string(b.Kind) }
func (b BankRedirect) PaymentMethodType() string { return string(b.Kind) }
func (b BankTransfer) PaymentMethodType() string { return string(b.Kind) }
func (p PayLater) PaymentMethodType() string     { return string(p.Kind) }
func (c CardRedirect) PaymentMethodType() string { return string(c.Kind) }
func (Crypto) PaymentMethodType() string         { return "crypto_currency" }
func (MandatePayment) PaymentMethodType() string { return "mandate_payment" }
func (Reward) PaymentMethodType() string         { return "classic_reward" }
func (v Voucher) PaymentMethodType() string      { return string(v.Kind) }
func (g GiftCard) PaymentMethodType() string     { return string(g.Kind) }
func (Upi) PaymentMethodType() string            { return "upi_collect" }

func (Card) isPaymentMethodData()           {}
func (Wallet) isPaymentMethodData()         {}
func (BankDebit) isPaymentMethodData()      {}
func (BankRedirect) isPaymentMethodData()   {}
func (BankTransfer) isPaymentMethodData()   {}
func (PayLater) isPaymentMethodData()       {}
func (CardRedirect) isPaymentMethodData()   {}
func (Crypto) isPaymentMethodData()         {}
func (MandatePayment) isPaymentMethodData() {}
func (Reward) isPaymentMethodData()         {}
func (Voucher) isPaymentMethodData()        {}
func (GiftCard) isPaymentMethodData()       {}
func (Upi) isPaymentMethodData()            {}

// SamplePaymentMethods returns one value for every (variant, sub-kind) pair.
// Capability queries run connectors against this list.
func SamplePaymentMethods() []PaymentMethodData {
	out := []PaymentMethodData{
		Card{Number: "4111111111111111", ExpMonth: "12", ExpYear: "30", CVC: "123"},
	}
	for _, k := range AllWalletKinds {
		w := Wallet{Kind: k}
		switch k {
		case WalletGooglePay:
			w.GooglePay = &GooglePayWalletData{Type: "CARD", Token: "{}"}
		case WalletApplePay:
			w.ApplePay = &ApplePayWalletData{PaymentData: "eyJ9"}
		}
		out = append(out, w)
	}
	for _, k := range AllBankDebitKinds {
		out = append(out, BankDebit{Kind: k})
	}
	for _, k := range AllBankRedirectKinds {
		out = append(out, BankRedirect{Kind: k})
	}
	for _, k := range AllBankTransferKinds {
		out = append(out, BankTransfer{Kind: k})
	}
	for _, k := range AllPayLaterKinds {
		out = append(out, PayLater{Kind: k})
	}
	for _, k := range AllCardRedirectKinds {
		out = append(out, CardRedirect{Kind: k})
	}
	out = append(out, Crypto{}, MandatePayment{}, Reward{})
	for _, k := range AllVoucherKinds {
		out = append(out, Voucher{Kind: k})
	}
	for _, k := range AllGiftCardKinds {
		out = append(out, GiftCard{Kind: k})
	}
	return append(out, Upi{})
}

var ErrUnknownPaymentMethod = errors.New("unknown payment method data")

// UnhandledPaymentMethod is returned by a connector's classification when it
// meets a variant it has no case for. A nil pmd means nothing was supplied.
func UnhandledPaymentMethod(connector string, pmd PaymentMethodData) error {
	if pmd == nil {
		return MissingRequiredField("payment_method_data")
	}
	return fmt.Errorf("%w: %s has no handling for %s type %q",
		ErrUnknownPaymentMethod, connector, pmd.PaymentMethod(), pmd.PaymentMethodType())
}

// PaymentMethodDataJSON wraps PaymentMethodData for the wire. It is externally
// tagged by category: {"card": {...}} or {"wallet": {"type": "google_pay", ...}}.
type PaymentMethodDataJSON struct {
	Data PaymentMethodData
}

func (p PaymentMethodDataJSON) MarshalJSON() ([]byte, error) {
	if p.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[PaymentMethod]PaymentMethodData{p.Data.PaymentMethod(): p.Data})
}

func (p *PaymentMethodDataJSON) UnmarshalJSON(b []byte) error {
	var raw map[PaymentMethod]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		p.Data = nil
		return nil
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: expected exactly one payment method, got %d", ErrUnknownPaymentMethod, len(raw))
	}
	for method, body := range raw {
		data, err := decodePaymentMethod(method, body)
		if err != nil {
			return err
		}
		p.Data = data
	}
	return nil
}

func decodePaymentMethod(method PaymentMethod, body json.RawMessage) (PaymentMethodData, error) {
	switch method {
	case MethodCard:
		return decodeInto[Card](body)
	case MethodWallet:
		return decodeInto[Wallet](body)
	case MethodBankDebit:
		return decodeInto[BankDebit](body)
	case MethodBankRedirect:
		return decodeInto[BankRedirect](body)
	case MethodBankTransfer:
		return decodeInto[BankTransfer](body)
	case MethodPayLater:
		return decodeInto[PayLater](body)
	case MethodCardRedirect:
		return decodeInto[CardRedirect](body)
	case MethodCrypto:
		return decodeInto[Crypto](body)
	case MethodMandatePayment:
		return MandatePayment{}, nil
	case MethodReward:
		return Reward{}, nil
	case MethodVoucher:
		return decodeInto[Voucher](body)
	case MethodGiftCard:
		return decodeInto[GiftCard](body)
	case MethodUpi:
		return decodeInto[Upi](body)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, string(method))
}

func decodeInto[T PaymentMethodData](body json.RawMessage) (PaymentMethodData, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
